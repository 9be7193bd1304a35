// Package tickers loads ticker lists from plain text files.
package tickers

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadFile reads a ticker list, one ticker per line. Lines are trimmed and
// blank lines are dropped.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tickers file: %w", err)
	}
	defer f.Close()

	var tickers []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ticker := strings.TrimSpace(scanner.Text())
		if ticker == "" {
			continue
		}
		tickers = append(tickers, ticker)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tickers file: %w", err)
	}
	return tickers, nil
}
