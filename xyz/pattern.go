// Package xyz provides API for reading and writing tiles in XYZ directory format,
// where tiles are stored as individual files with paths like "/z/x/y.ext",
// and a persistent tile cache built on top of it.
package xyz

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/eak1mov/go-libmap/tile"
)

var ErrInvalidPattern = errors.New("libmap: invalid file pattern")

const defaultStyle = "default"

func validatePattern(pattern string) error {
	for _, p := range []string{"{x}", "{y}", "{z}"} {
		if !strings.Contains(pattern, p) {
			return fmt.Errorf("%w: placeholder %v not found", ErrInvalidPattern, p)
		}
	}
	return nil
}

func formatPattern(pattern string, index tile.Index, style string) string {
	if style == "" {
		style = defaultStyle
	}
	return strings.NewReplacer(
		"{x}", strconv.FormatInt(index.X, 10),
		"{y}", strconv.FormatInt(index.Y, 10),
		"{z}", strconv.FormatUint(uint64(index.Z), 10),
		"{style}", style,
	).Replace(pattern)
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	regexPattern := regexp.QuoteMeta(pattern)
	regexPattern = strings.ReplaceAll(regexPattern, regexp.QuoteMeta("{x}"), `(?P<x>-?\d+)`)
	regexPattern = strings.ReplaceAll(regexPattern, regexp.QuoteMeta("{y}"), `(?P<y>-?\d+)`)
	regexPattern = strings.ReplaceAll(regexPattern, regexp.QuoteMeta("{z}"), `(?P<z>\d+)`)
	regexPattern = strings.ReplaceAll(regexPattern, regexp.QuoteMeta("{style}"), `(?P<style>[^/\\]+)`)
	pathRegex, err := regexp.Compile("^" + regexPattern + "$")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return pathRegex, nil
}

func parsePath(pathRegex *regexp.Regexp, filePath string) (tile.Index, string, bool) {
	matches := pathRegex.FindStringSubmatch(filePath)
	if matches == nil {
		return tile.Index{}, "", false
	}
	x, errX := strconv.ParseInt(matches[pathRegex.SubexpIndex("x")], 10, 64)
	y, errY := strconv.ParseInt(matches[pathRegex.SubexpIndex("y")], 10, 64)
	z, errZ := strconv.ParseUint(matches[pathRegex.SubexpIndex("z")], 10, 32)
	if errX != nil || errY != nil || errZ != nil {
		return tile.Index{}, "", false
	}
	style := ""
	if i := pathRegex.SubexpIndex("style"); i >= 0 {
		style = matches[i]
	}
	return tile.Index{X: x, Y: y, Z: uint32(z)}, style, true
}
