package server

import "regexp"

// callbackMarker matches "@@cb:<N>s@@<payload>" runs, where payload is
// everything up to the next marker or the end of the message.
var callbackMarker = regexp.MustCompile(`(?s)@@cb:(\d+)s@@(.*?)(?:(?:@@cb:\d+s@@)|\z)`)

// Callback is one extracted scheduled-delivery marker.
type Callback struct {
	Seconds int
	Payload string
}

// ExtractCallbacks strips every "@@cb:Ns@@payload" occurrence from
// content, returning the stripped text plus the extracted callbacks in
// order of appearance. If content consists only of callback markers,
// stripped is empty.
func ExtractCallbacks(content string) (stripped string, callbacks []Callback) {
	locs := callbackMarker.FindAllStringSubmatchIndex(content, -1)
	if len(locs) == 0 {
		return content, nil
	}

	var b []byte
	last := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		numStart, numEnd := loc[2], loc[3]
		payloadStart, payloadEnd := loc[4], loc[5]

		b = append(b, content[last:start]...)
		last = end

		seconds := atoi(content[numStart:numEnd])
		callbacks = append(callbacks, Callback{Seconds: seconds, Payload: content[payloadStart:payloadEnd]})
	}
	b = append(b, content[last:]...)
	return string(b), callbacks
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}
