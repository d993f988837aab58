package osm

import (
	"strconv"
	"strings"
)

const mphToKmh = 1.609344

// Tags are the key/value pairs of a way.
type Tags map[string]string

func (t Tags) Highway() string { return t["highway"] }

// OneWay reports whether the way may only be travelled one way, and whether
// that way runs against the node order (oneway=-1).
func (t Tags) OneWay() (oneway, reverse bool) {
	switch t["oneway"] {
	case "yes", "true", "1":
		return true, false
	case "-1", "reverse":
		return true, true
	case "no", "false", "0":
		return false, false
	}
	if t["junction"] == "roundabout" {
		return true, false
	}
	switch t.Highway() {
	case "motorway", "motorway_link":
		return true, false
	}
	return false, false
}

// MaxSpeed returns the speed limits in km/h for both directions of the
// way, falling back to def where no usable tag is present.
func (t Tags) MaxSpeed(def float64) (forward, backward float64) {
	base := parseSpeed(t["maxspeed"], def)
	return parseSpeed(t["maxspeed:forward"], base), parseSpeed(t["maxspeed:backward"], base)
}

func parseSpeed(v string, def float64) float64 {
	v = strings.TrimSpace(v)
	switch v {
	case "":
		return def
	case "walk":
		return 5
	case "none":
		return 130
	}
	factor := 1.0
	if strings.HasSuffix(v, "mph") {
		factor = mphToKmh
		v = strings.TrimSpace(strings.TrimSuffix(v, "mph"))
	}
	v = strings.TrimSpace(strings.TrimSuffix(v, "km/h"))
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f * factor
}

// Class describes a highway class: its routing priority and the speed used
// when the way has no maxspeed tag.
type Class struct {
	Priority float64
	Speed    float64
}

// SpeedTable maps highway classes to their defaults.
type SpeedTable map[string]Class

var fallbackClass = Class{Priority: 1.5, Speed: 30}

// DefaultSpeeds covers the drivable highway classes.
func DefaultSpeeds() SpeedTable {
	return SpeedTable{
		"motorway":       {Priority: 1.0, Speed: 120},
		"motorway_link":  {Priority: 1.0, Speed: 60},
		"trunk":          {Priority: 1.0, Speed: 100},
		"trunk_link":     {Priority: 1.0, Speed: 60},
		"primary":        {Priority: 1.1, Speed: 80},
		"primary_link":   {Priority: 1.1, Speed: 50},
		"secondary":      {Priority: 1.2, Speed: 70},
		"secondary_link": {Priority: 1.2, Speed: 50},
		"tertiary":       {Priority: 1.3, Speed: 50},
		"tertiary_link":  {Priority: 1.3, Speed: 40},
		"unclassified":   {Priority: 1.5, Speed: 40},
		"residential":    {Priority: 1.5, Speed: 30},
		"living_street":  {Priority: 2.0, Speed: 10},
		"service":        {Priority: 2.0, Speed: 20},
	}
}

// Lookup returns the defaults for class, or a residential-like fallback.
func (s SpeedTable) Lookup(class string) Class {
	if c, ok := s[class]; ok {
		return c
	}
	return fallbackClass
}
