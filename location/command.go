package location

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/bumisarana/absensi-client/models"
)

// Command obtains the position from an external helper that prints a JSON
// object with latitude/longitude fields, e.g. termux-location on Android.
// Each call runs the helper fresh under QueryTimeout; nothing is cached.
type Command struct {
	Cmd  string
	Args []string
}

func (c *Command) Current(ctx context.Context) (models.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, c.Cmd, c.Args...).Output()
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: %s: %v", ErrUnavailable, c.Cmd, err)
	}
	return parseReading(out)
}

func parseReading(out []byte) (models.Location, error) {
	var reading struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.Unmarshal(out, &reading); err != nil {
		return models.Location{}, fmt.Errorf("%w: parse helper output: %v", ErrUnavailable, err)
	}
	loc := models.Location{Latitude: reading.Latitude, Longitude: reading.Longitude}
	if !loc.IsValid() {
		return models.Location{}, fmt.Errorf("%w: helper reported coordinates out of range", ErrUnavailable)
	}
	return loc, nil
}
