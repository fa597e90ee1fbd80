package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/aktagon/note-writer/internal/topics"
)

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: repair <book-titles|dedupe-ids> <topics.csv>")
	}

	command := os.Args[1]
	store := topics.NewStore(os.Args[2])

	switch command {
	case "book-titles":
		if _, err := fixBookTitles(store, os.Stdout); err != nil {
			log.Fatal(err)
		}
	case "dedupe-ids":
		if _, err := dedupeIDs(store, bufio.NewReader(os.Stdin), os.Stdout); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("Unknown command %q", command)
	}
}

var titleMarks = strings.NewReplacer("《", "", "》", "")

// normalizeBookTitle wraps title in exactly one pair of 《》.
func normalizeBookTitle(title string) string {
	clean := strings.TrimSpace(titleMarks.Replace(title))
	if clean == "" {
		return title
	}
	return "《" + clean + "》"
}

func fixBookTitles(store *topics.Store, out io.Writer) (int, error) {
	fixed, err := store.Update(func(t *topics.Topic) bool {
		want := normalizeBookTitle(t.BookTitle)
		if want == t.BookTitle {
			return false
		}
		fmt.Fprintf(out, "Fixed: %s -> %s\n", t.BookTitle, want)
		t.BookTitle = want
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("fixing book titles: %w", err)
	}
	fmt.Fprintf(out, "\n✓ Fixed %d book titles\n", fixed)
	return fixed, nil
}

func dedupeIDs(store *topics.Store, in *bufio.Reader, out io.Writer) (int, error) {
	all, err := store.All()
	if err != nil {
		return 0, err
	}
	counts := make(map[string]int)
	for _, t := range all {
		counts[t.ID]++
	}

	seen := make(map[string]bool)
	removed, err := store.Filter(func(t topics.Topic) bool {
		if counts[t.ID] <= 1 {
			return true
		}
		if !seen[t.ID] {
			seen[t.ID] = true
			fmt.Fprintf(out, "\nFound %d rows with id %s:\n", counts[t.ID], t.ID)
			fmt.Fprintf(out, "  KEEP: %s\n", describe(t))
			return true
		}
		if confirmDelete(in, out, t) {
			fmt.Fprintf(out, "  REMOVED: %s\n", describe(t))
			return false
		}
		fmt.Fprintf(out, "  SKIP: %s\n", describe(t))
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("removing duplicates: %w", err)
	}

	fmt.Fprintf(out, "\nRemoved %d duplicate rows\n", removed)
	return removed, nil
}

func describe(t topics.Topic) string {
	return fmt.Sprintf("%s %s (%s)", t.ID, t.BookTitle, t.Audience)
}

func confirmDelete(in *bufio.Reader, out io.Writer, t topics.Topic) bool {
	for {
		fmt.Fprintf(out, "  DELETE %s? [y/N]: ", describe(t))
		input, err := in.ReadString('\n')
		if err != nil && input == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(input)) {
		case "y", "yes":
			return true
		case "", "n", "no":
			return false
		default:
			fmt.Fprintln(out, "  Please enter y or n.")
			if err != nil {
				return false
			}
		}
	}
}
