package grbl

import (
	"errors"
	"strconv"
	"strings"

	"github.com/mastercactapus/probeguard/coord"
	"github.com/mastercactapus/probeguard/machine"
)

func parseCoords(data string) (p coord.Point, err error) {
	parts := strings.Split(data, ",")
	if len(parts) < 3 {
		return p, errors.New("invalid number of elements")
	}
	p.X, err = strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return p, err
	}
	p.Y, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return p, err
	}
	p.Z, err = strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return p, err
	}
	return p, nil
}

func parseProbe(data string) (*machine.ProbeResult, error) {
	data = strings.TrimSpace(data)
	data = strings.TrimPrefix(data, "[")
	data = strings.TrimSuffix(data, "]")
	parts := strings.Split(data, ":")
	var err error
	switch parts[0] {
	case "PRB":
		if len(parts) != 3 {
			return nil, errors.New("invalid probe result: " + data)
		}
		var res machine.ProbeResult
		res.Valid = parts[2] == "1"
		res.Point, err = parseCoords(parts[1])
		if err != nil {
			return nil, err
		}

		return &res, nil
	}

	return nil, errors.New("unknown PUSH message: " + data)
}

func parseStatus(stat machine.State, data string) (*machine.State, error) {
	data = strings.TrimSpace(data)
	data = strings.TrimPrefix(data, "<")
	data = strings.TrimSuffix(data, ">")
	parts := strings.Split(data, "|")
	stat.Status = parts[0]

	// Pn is only sent while an input is active
	stat.Pins = ""

	var wPos *coord.Point
	var err error
	for _, s := range parts[1:] {
		sParts := strings.SplitN(s, ":", 2)
		if len(sParts) != 2 {
			continue
		}
		switch sParts[0] {
		case "MPos":
			stat.MPos, err = parseCoords(sParts[1])
		case "WPos":
			var p coord.Point
			p, err = parseCoords(sParts[1])
			wPos = &p
		case "WCO":
			stat.WCO, err = parseCoords(sParts[1])
		case "Pn":
			stat.Pins = sParts[1]
		}
		if err != nil {
			return nil, err
		}
	}
	if wPos != nil {
		stat.MPos = wPos.Add(stat.WCO)
	}
	return &stat, nil
}

// parseLine applies one line from the controller to the last known state.
// Lines that do not change state and are not acknowledgements are returned
// as a message.
func parseLine(last machine.State, data string) (state machine.State, message string, err error) {
	data = strings.TrimSpace(data)
	switch {
	case data == "", data == "ok":
		return last, "", nil
	case data[0] == '<':
		stat, err := parseStatus(last, data)
		if err != nil {
			return last, "", err
		}
		return *stat, "", nil
	case strings.HasPrefix(data, "[PRB:"):
		prb, err := parseProbe(data)
		if err != nil {
			return last, "", err
		}
		last.Probe = *prb
		return last, "", nil
	case strings.HasPrefix(data, "ALARM:"):
		last.Status = "Alarm"
	}
	return last, data, nil
}
