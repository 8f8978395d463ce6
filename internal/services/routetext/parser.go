package routetext

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Parser extracts structured route information from free text: pasted
// descriptions or OCR output from schedule photographs. Extraction is best
// effort; the confidence score tells callers how much was found.
type Parser struct{}

func New() *Parser { return &Parser{} }

// RouteData is the structured result of a parse. Timings are normalized to
// 24-hour HH:mm in order of appearance.
type RouteData struct {
	BusNumber    string
	FromLocation string
	ToLocation   string
	Timings      []string
	Stops        []string
	Confidence   float64
}

// Usable reports whether the parse found the minimum viable data. The bus
// number is optional; both endpoints are required.
func (d RouteData) Usable() bool {
	return d.FromLocation != "" && d.ToLocation != ""
}

var (
	explicitBusPattern = regexp.MustCompile(`(?i)(?:bus|route|service|no\.?|number)\s*[:#.-]?\s*([A-Za-z0-9]{1,5})`)
	prefixBusPattern   = regexp.MustCompile(`(?i)\b(TNSTC|MTC|SETC|KSRTC|TSRTC|APSRTC|BMTC)\s*[-:]?\s*([A-Za-z0-9]{1,5})\b`)
	startBusPattern    = regexp.MustCompile(`^\s*([A-Za-z]?\d{1,4}[A-Za-z]?)\b`)
	standaloneBusPattern = regexp.MustCompile(`\b([A-Za-z]{0,2}\d{1,4}[A-Za-z]?)\b`)

	validBusNumber   = regexp.MustCompile(`^(?:[A-Z]{0,3}-?\d{1,4}[A-Z]?|[A-Z]\d{1,4})$`)
	yearLike         = regexp.MustCompile(`^20[2-3]\d$`)
	paddedTimeLike   = regexp.MustCompile(`^0\d{3}$`)
	zeroLeading3Like = regexp.MustCompile(`^0\d{2}$`)

	arrowPattern        = regexp.MustCompile(`([A-Za-z][A-Za-z ]{2,35})\s*(?:→|->|=>|–|—|>)\s*([A-Za-z][A-Za-z ]{2,35})`)
	dashPattern         = regexp.MustCompile(`([A-Z][a-zA-Z]{2,20})\s+-\s+([A-Z][a-zA-Z]{2,20})`)
	departArrivePattern = regexp.MustCompile(`(?is)(?:departure|depart|start|origin)\s*[:\-]?\s*([A-Za-z][A-Za-z ]{2,30}?)\s*(?:arrival|arrive|end|destination)\s*[:\-]?\s*([A-Za-z][A-Za-z ]{2,30})`)
	colonPattern        = regexp.MustCompile(`(?is)from\s*[:\-]\s*([A-Za-z][A-Za-z ]{2,30}?)\s*to\s*[:\-]\s*([A-Za-z][A-Za-z ]{2,30})`)
	routeHeaderPattern  = regexp.MustCompile(`(?i)([A-Z][a-zA-Z]{2,20})\s*[-–]?\s*([A-Z][a-zA-Z]{2,20})\s+(?:Route|Express|Bus|Service)`)
	englishPattern      = regexp.MustCompile(`(?i)(?:from\s+)?([A-Za-z][A-Za-z ]{2,35}?)\s+(?:to|towards)\s+([A-Za-z][A-Za-z ]{2,35})`)

	clockTimePattern = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\s*(?i:(am|pm))?\b`)
	hourOnlyPattern  = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(am|pm)\b`)

	stopsPattern    = regexp.MustCompile(`(?i)(?:stops?|via)\s*[:\-]?\s*([^\n.!?]+)`)
	stopSplitter    = regexp.MustCompile(`[,;]|\s+and\s+`)
	stopNumbering   = regexp.MustCompile(`^\d+\.?\s*`)
	stopBullet      = regexp.MustCompile(`^[-•*]\s*`)
	spaceCollapse   = regexp.MustCompile(`\s+`)
	locationPrefix  = regexp.MustCompile(`(?i)^(from|to|at|in|near|via)\s+`)
	locationSuffix  = regexp.MustCompile(`(?i)\s+(route|express|bus|service|station|junction|jn|stand|terminal)$`)
	timingWordTail  = regexp.MustCompile(`(?i)\s*(morning|evening|afternoon|night|daily|am|pm|departs?|arrives?|leaves?)$`)
	viaTail         = regexp.MustCompile(`(?i)\s+via\s+.*$`)
	timeTail        = regexp.MustCompile(`\s*\d{1,2}:\d{2}.*$`)
	punctuationTail = regexp.MustCompile(`[.,;:!?]+$`)
	punctuationHead = regexp.MustCompile(`^[.,;:!?\-]+`)
)

// Parse extracts route data from the text.
func (p *Parser) Parse(text string) RouteData {
	var data RouteData
	if strings.TrimSpace(text) == "" {
		return data
	}

	var raw string
	data.BusNumber, raw = extractBusNumber(text)
	// Drop the matched bus number so it cannot bleed into a location capture.
	locationText := text
	if raw != "" {
		locationText = strings.Replace(locationText, raw, " ", 1)
	}
	data.FromLocation, data.ToLocation = extractLocations(locationText)
	data.Timings = extractTimings(text)
	data.Stops = extractStops(text)
	data.Confidence = confidence(data)
	return data
}

func extractBusNumber(text string) (number, raw string) {
	if m := explicitBusPattern.FindStringSubmatch(text); m != nil {
		candidate := strings.ToUpper(m[1])
		if validBusNumber.MatchString(candidate) {
			return candidate, m[0]
		}
	}

	if m := prefixBusPattern.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1]) + "-" + strings.ToUpper(m[2]), m[0]
	}

	if m := startBusPattern.FindStringSubmatch(text); m != nil {
		candidate := strings.ToUpper(m[1])
		if validBusNumber.MatchString(candidate) {
			return candidate, m[1]
		}
	}

	// Last resort; prone to false positives, so filter out years and times.
	for _, m := range standaloneBusPattern.FindAllStringSubmatch(text, -1) {
		candidate := strings.ToUpper(m[1])
		if validBusNumber.MatchString(candidate) && !likelyNotBusNumber(candidate) {
			return candidate, m[1]
		}
	}
	return "", ""
}

func likelyNotBusNumber(candidate string) bool {
	return yearLike.MatchString(candidate) ||
		paddedTimeLike.MatchString(candidate) ||
		zeroLeading3Like.MatchString(candidate)
}

func extractLocations(text string) (from, to string) {
	patterns := []*regexp.Regexp{
		arrowPattern,
		dashPattern,
		departArrivePattern,
		colonPattern,
		routeHeaderPattern,
		englishPattern,
	}
	for _, pattern := range patterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			from = cleanLocationName(m[1])
			to = cleanLocationName(m[2])
			if from != "" && to != "" {
				return from, to
			}
		}
	}
	return "", ""
}

func cleanLocationName(raw string) string {
	cleaned := spaceCollapse.ReplaceAllString(strings.TrimSpace(raw), " ")
	cleaned = viaTail.ReplaceAllString(cleaned, "")
	cleaned = locationPrefix.ReplaceAllString(cleaned, "")
	cleaned = locationSuffix.ReplaceAllString(cleaned, "")
	cleaned = timingWordTail.ReplaceAllString(cleaned, "")
	cleaned = punctuationTail.ReplaceAllString(cleaned, "")
	cleaned = punctuationHead.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned != "" && cleaned[0] >= 'a' && cleaned[0] <= 'z' {
		cleaned = strings.ToUpper(cleaned[:1]) + cleaned[1:]
	}
	return cleaned
}

func extractTimings(text string) []string {
	var timings []string
	seen := make(map[string]bool)

	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			timings = append(timings, t)
		}
	}

	for _, m := range clockTimePattern.FindAllStringSubmatch(text, -1) {
		add(normalizeClock(m[1], m[2], m[3]))
	}
	for _, m := range hourOnlyPattern.FindAllStringSubmatch(text, -1) {
		add(normalizeClock(m[1], "00", m[2]))
	}
	return timings
}

// normalizeClock converts an extracted time to 24-hour HH:mm. Returns ""
// when the components do not form a valid clock reading.
func normalizeClock(hourStr, minuteStr, meridiem string) string {
	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return ""
	}
	minute, err := strconv.Atoi(minuteStr)
	if err != nil || minute > 59 {
		return ""
	}

	switch strings.ToLower(meridiem) {
	case "am":
		if hour < 1 || hour > 12 {
			return ""
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return ""
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return ""
		}
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

func extractStops(text string) []string {
	m := stopsPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	var stops []string
	for _, part := range stopSplitter.Split(m[1], -1) {
		cleaned := cleanStopName(part)
		if len(cleaned) >= 3 {
			stops = append(stops, cleaned)
		}
	}
	return stops
}

func cleanStopName(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = stopNumbering.ReplaceAllString(cleaned, "")
	cleaned = stopBullet.ReplaceAllString(cleaned, "")
	cleaned = timeTail.ReplaceAllString(cleaned, "")
	cleaned = spaceCollapse.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// confidence weighs how much of the route was recovered: endpoints carry
// most of the weight, the bus number less, timings and stops the rest.
func confidence(data RouteData) float64 {
	score := 0.0
	if data.BusNumber != "" {
		score += 0.20
	}
	if data.FromLocation != "" {
		score += 0.30
	}
	if data.ToLocation != "" {
		score += 0.30
	}
	if len(data.Timings) > 0 {
		score += 0.10
	}
	if len(data.Stops) > 0 {
		score += 0.10
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
