// Package web renders the HTML job history page.
package web

//go:generate templ generate

import (
	"fmt"
	"strings"

	"github.com/DelxAbde/panel-pal-translate/internal/job"
)

const snippetLen = 80

func sourceLabel(j *job.Job) string {
	if j.DetectedLanguage != "" {
		return j.DetectedLanguage + " (detected)"
	}
	return j.SourceLanguage
}

func progressLabel(j *job.Job) string {
	return strings.TrimSpace(fmt.Sprintf("%d%% %s", j.Progress, j.ProgressMessage))
}

// snippet shortens s to one table cell line.
func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > snippetLen {
		s = string(r[:snippetLen]) + "…"
	}
	return s
}
