// Command phrasexquery opens a built phrasex index directory and answers
// interactive queries typed on stdin, one query per line.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/geocoder-oss/phrasex"
)

// Query forms, chosen with a single-letter command prefix read from
// stdin: "c <words>" contains, "p <words>" contains_prefix, "f <d> <D>
// <words>" fuzzy_match, "fp <d> <D> <words>" fuzzy_match_prefix,
// "w <d> <D> <words>" fuzzy_match_windows, "e <words>" explain.
func main() {
	dir := flag.String("dir", "", "index directory to open")
	timeout := flag.Duration("timeout", 5*time.Second, "per-query timeout for windowed queries")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "phrasexquery: -dir is required")
		os.Exit(1)
	}

	idx, err := phrasex.Open(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "phrasexquery: open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := dispatch(idx, line, *timeout); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

func dispatch(idx *phrasex.Index, line string, timeout time.Duration) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, rest := fields[0], fields[1:]

	switch cmd {
	case "c":
		fmt.Println(idx.Contains(rest))
	case "p":
		fmt.Println(idx.ContainsPrefix(rest))
	case "f", "fp":
		if len(rest) < 2 {
			return fmt.Errorf("usage: %s <max_word_d> <max_total_d> <words...>", cmd)
		}
		maxWordD, err := strconv.Atoi(rest[0])
		if err != nil {
			return err
		}
		maxTotalD, err := strconv.Atoi(rest[1])
		if err != nil {
			return err
		}
		words := rest[2:]
		var matches []phrasex.Match
		if cmd == "f" {
			matches, err = idx.FuzzyMatch(words, maxWordD, maxTotalD)
		} else {
			matches, err = idx.FuzzyMatchPrefix(words, maxWordD, maxTotalD)
		}
		if err != nil {
			return err
		}
		printMatches(matches)
	case "w":
		if len(rest) < 2 {
			return fmt.Errorf("usage: w <max_word_d> <max_total_d> <words...>")
		}
		maxWordD, err := strconv.Atoi(rest[0])
		if err != nil {
			return err
		}
		maxTotalD, err := strconv.Atoi(rest[1])
		if err != nil {
			return err
		}
		words := rest[2:]
		wins, err := windowsWithTimeout(idx, words, maxWordD, maxTotalD, timeout)
		if err != nil {
			return err
		}
		printWindows(wins)
	case "e":
		printExplanation(idx.Explain(rest))
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// windowsWithTimeout wraps a FuzzyMatchWindows call with a caller-side
// deadline. The core query surface takes no context.Context of its own,
// so cancellation here only stops waiting for the result, not the walk
// itself.
func windowsWithTimeout(idx *phrasex.Index, words []string, maxWordD, maxTotalD int, timeout time.Duration) ([]phrasex.WindowMatch, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	type result struct {
		wins []phrasex.WindowMatch
		err  error
	}
	done := make(chan result, 1)
	go func() {
		wins, err := idx.FuzzyMatchWindows(words, maxWordD, maxTotalD, true)
		done <- result{wins, err}
	}()

	select {
	case r := <-done:
		return r.wins, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func printMatches(matches []phrasex.Match) {
	if len(matches) == 0 {
		fmt.Println("(no matches)")
		return
	}
	widthCol := 0
	rendered := make([]string, len(matches))
	for i, m := range matches {
		rendered[i] = strings.Join(m.Words, " ")
		if w := runewidth.StringWidth(rendered[i]); w > widthCol {
			widthCol = w
		}
	}
	for i, m := range matches {
		pad := widthCol - runewidth.StringWidth(rendered[i])
		fmt.Printf("  %s%s  d=%d\n", rendered[i], strings.Repeat(" ", pad), m.Distance)
	}
}

func printWindows(wins []phrasex.WindowMatch) {
	if len(wins) == 0 {
		fmt.Println("(no matches)")
		return
	}
	for _, w := range wins {
		suffix := ""
		if w.EndsInPrefixHit {
			suffix = " (prefix)"
		}
		fmt.Printf("  [%d,%d) %s  d=%d%s\n", w.Start, w.End, strings.Join(w.Words, " "), w.Distance, suffix)
	}
}

func printExplanation(exp phrasex.Explanation) {
	for _, tok := range exp.Tokens {
		fmt.Printf("%s:\n", tok.Token)
		if len(tok.Variants) == 0 {
			fmt.Println("  (no variants)")
			continue
		}
		for _, v := range tok.Variants {
			switch v.Kind {
			case "exact":
				fmt.Printf("  exact %-20s d=%d\n", v.Word, v.Distance)
			case "range":
				fmt.Printf("  range %d words (showing %d): %s\n", v.RangeSize, len(v.RangeWords), strings.Join(v.RangeWords, ", "))
			}
		}
	}
}
