package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/corelink-protocol/corelink-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Engines           map[string]*EngineStats
	Retransmits       int
	Timeouts          int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// EngineStats holds statistics for a single delivery engine.
type EngineStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	RemoteAddr string
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Engines:           make(map[string]*EngineStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByLayer[event.Layer]++
		stats.EventsByCategory[event.Category]++
		stats.EventsByDirection[event.Direction]++

		// Track time range
		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		// Track engine stats
		eng, ok := stats.Engines[event.EngineID]
		if !ok {
			eng = &EngineStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
			}
			stats.Engines[event.EngineID] = eng
		}
		eng.Events++
		if event.Timestamp.After(eng.LastSeen) {
			eng.LastSeen = event.Timestamp
		}
		if event.RemoteAddr != "" && eng.RemoteAddr == "" {
			eng.RemoteAddr = event.RemoteAddr
		}

		// Count delivery outcomes
		if event.Delivery != nil {
			switch event.Delivery.Kind {
			case log.DeliveryRetransmit:
				stats.Retransmits++
			case log.DeliveryTimedOut:
				stats.Timeouts++
			}
		}

		// Count errors
		if event.Error != nil {
			stats.Errors++
		}
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== CoreLink Protocol Log Statistics ===")
	fmt.Fprintln(w)

	// Time range
	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	// Total events
	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	// Events by layer
	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerLink, log.LayerMessage, log.LayerDelivery} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// Events by category
	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryDelivery, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// Events by direction
	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// Delivery outcomes
	if stats.Retransmits > 0 || stats.Timeouts > 0 {
		fmt.Fprintln(w, "Delivery:")
		fmt.Fprintf(w, "  %-12s %d\n", "Retransmits:", stats.Retransmits)
		if stats.Timeouts > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", "Timeouts:", stats.Timeouts)
		}
		fmt.Fprintln(w)
	}

	// Engines
	fmt.Fprintf(w, "Engines: %d\n", len(stats.Engines))
	if len(stats.Engines) > 0 {
		// Sort by first seen time
		type engineInfo struct {
			id    string
			stats *EngineStats
		}
		engines := make([]engineInfo, 0, len(stats.Engines))
		for id, es := range stats.Engines {
			engines = append(engines, engineInfo{id, es})
		}
		sort.Slice(engines, func(i, j int) bool {
			return engines[i].stats.FirstSeen.Before(engines[j].stats.FirstSeen)
		})

		fmt.Fprintln(w, "")
		for _, e := range engines {
			duration := e.stats.LastSeen.Sub(e.stats.FirstSeen).Round(time.Millisecond)
			shortID := e.id
			if len(shortID) > 8 {
				shortID = shortID[:8]
			}
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortID, e.stats.Events, duration)
			if e.stats.RemoteAddr != "" {
				fmt.Fprintf(w, "           Remote: %s\n", e.stats.RemoteAddr)
			}
		}
	}

	// Errors
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
