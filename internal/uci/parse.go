package uci

import (
	"strconv"
	"strings"
)

// info carries the fields of a single "info" line that the session cares
// about. Engines emit many info tokens; everything else is skipped.
type info struct {
	Depth      *int
	Centipawns *int
	Mate       *int
	PV         []string
}

// parseBestMove parses a terminal "bestmove <move> [ponder <move>]" line.
func parseBestMove(line string) (bestMove, ponder string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "bestmove" {
		return "", "", false
	}
	bestMove = fields[1]
	for i := 2; i+1 < len(fields); i++ {
		if fields[i] == "ponder" {
			ponder = fields[i+1]
			break
		}
	}
	return bestMove, ponder, true
}

// parseInfo parses an "info ..." search-progress line. Unknown tokens are
// ignored; "pv" consumes the rest of the line per the UCI grammar.
func parseInfo(line string) (info, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "info" {
		return info{}, false
	}

	var upd info
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if i+1 < len(fields) {
				if d, err := strconv.Atoi(fields[i+1]); err == nil {
					upd.Depth = intPtr(d)
				}
				i++
			}
		case "score":
			if i+2 < len(fields) {
				if v, err := strconv.Atoi(fields[i+2]); err == nil {
					switch fields[i+1] {
					case "cp":
						upd.Centipawns = intPtr(v)
					case "mate":
						upd.Mate = intPtr(v)
					}
				}
				i += 2
			}
		case "pv":
			if i+1 < len(fields) {
				upd.PV = append([]string(nil), fields[i+1:]...)
			}
			return upd, true
		}
	}

	return upd, true
}

func intPtr(v int) *int {
	return &v
}
