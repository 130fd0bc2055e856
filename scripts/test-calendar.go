package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pfrederiksen/cuya-elections/internal/calendar"
	"github.com/pfrederiksen/cuya-elections/internal/config"
	"github.com/pfrederiksen/cuya-elections/internal/meeting"
)

func main() {
	loc, err := time.LoadLocation(config.DefaultTimezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading timezone: %v\n", err)
		os.Exit(1)
	}

	// Build a sample meeting the way the scraper would
	n := meeting.NewNormalizer(config.DefaultSpiderName, meeting.Location{
		Name:    config.DefaultLocationName,
		Address: config.DefaultLocationAddress,
	})
	m := n.Normalize(meeting.Fields{
		Title:       "Board Meeting",
		Description: "The Board of Elections will hold its regular monthly meeting.",
		Start:       time.Date(2030, 11, 19, 9, 0, 0, 0, loc),
		Links: []meeting.Link{
			{Title: "Agenda", Href: "https://boe.cuyahogacounty.gov/docs/agenda.pdf"},
		},
		Source: config.DefaultCurrentURL,
	})

	icsContent, err := calendar.GenerateICS([]*meeting.Meeting{m}, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating calendar: %v\n", err)
		os.Exit(1)
	}

	// Write to file (owner read/write only)
	filename := "test-cuya-meeting.ics"
	if err := os.WriteFile(filename, []byte(icsContent), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated calendar file: %s\n\n", filename)
	fmt.Println("Test it by:")
	fmt.Println("1. Open the .ics file with your calendar app")
	fmt.Println("2. Or import it into Google Calendar, Apple Calendar, or Outlook")
	fmt.Println("\nFile contents preview:")
	fmt.Println("---")
	fmt.Println(icsContent)
}
