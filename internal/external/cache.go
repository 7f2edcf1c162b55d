// Package external reads events synced from an outside calendar. The sync
// itself runs elsewhere and leaves a JSON cache file behind.
package external

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/tailscale/hujson"

	"github.com/starford/gtdspace/internal/models"
)

const statusCancelled = "cancelled"

// cacheFile mirrors the sync cache on disk.
type cacheFile struct {
	Events      []cachedEvent `json:"events"`
	LastUpdated string        `json:"last_updated"`
}

type cachedEvent struct {
	ID          string   `json:"id"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Location    string   `json:"location"`
	Attendees   []string `json:"attendees"`
	MeetingLink string   `json:"meeting_link"`
	Status      string   `json:"status"`
	ColorID     string   `json:"color_id"`
}

// Snapshot is the decoded cache.
type Snapshot struct {
	Events      []models.ExternalEvent
	LastUpdated time.Time
}

// Load reads the cache at path. A missing file yields an empty snapshot.
func Load(path string, loc *time.Location) (Snapshot, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("external: expand %s: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("external: read cache: %w", err)
	}
	return Parse(data, loc)
}

// Parse decodes cache bytes. Comments and trailing commas are tolerated.
// Cancelled and undated events are dropped.
func Parse(data []byte, loc *time.Location) (Snapshot, error) {
	if loc == nil {
		loc = time.Local
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("external: parse cache: %w", err)
	}
	var raw cacheFile
	if err := json.Unmarshal(std, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("external: decode cache: %w", err)
	}

	var snap Snapshot
	if t, err := time.Parse(time.RFC3339, raw.LastUpdated); err == nil {
		snap.LastUpdated = t
	}
	for _, e := range raw.Events {
		if strings.EqualFold(e.Status, statusCancelled) {
			continue
		}
		start, allDay, ok := parseInstant(e.Start, loc)
		if !ok {
			continue
		}
		end, _, _ := parseInstant(e.End, loc)
		title := strings.TrimSpace(e.Summary)
		if title == "" {
			title = "(No title)"
		}
		snap.Events = append(snap.Events, models.ExternalEvent{
			ID:          e.ID,
			Title:       title,
			Description: e.Description,
			Location:    e.Location,
			Start:       start,
			End:         end,
			AllDay:      allDay,
			Attendees:   e.Attendees,
			MeetingLink: e.MeetingLink,
			Status:      e.Status,
			ColorID:     e.ColorID,
		})
	}
	sort.SliceStable(snap.Events, func(i, j int) bool { return snap.Events[i].Start.Before(snap.Events[j].Start) })
	return snap, nil
}

// parseInstant reads an RFC 3339 instant or a bare date. Bare dates are
// all-day values at local midnight.
func parseInstant(s string, loc *time.Location) (time.Time, bool, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), false, true
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, true, true
	}
	return time.Time{}, false, false
}
