package console

import (
	"fmt"

	"triviahost/core"
)

// printer turns consecutive snapshots into the lines that changed.
type printer struct {
	started     bool
	state       core.GameState
	host        string
	question    string
	transcripts int
	score       int
	err         string
}

func (p *printer) diff(s core.GameSnapshot) []string {
	var lines []string

	host := ""
	if s.Personality != nil {
		host = s.Personality.Name
	}
	if host != p.host {
		p.host = host
		if host != "" {
			lines = append(lines, fmt.Sprintf("Host: %s", host))
		}
	}

	if !p.started || s.State != p.state {
		p.started = true
		p.state = s.State
		lines = append(lines, fmt.Sprintf("[%s] %s", s.State, s.StatusMessage))
	}

	question := ""
	if s.Round != nil {
		question = s.Round.Question
	}
	if question != p.question {
		p.question = question
		if question != "" {
			lines = append(lines, "Q: "+question)
			for _, src := range s.Sources {
				lines = append(lines, fmt.Sprintf("   source: %s <%s>", src.DisplayTitle(), src.URI))
			}
		}
	}

	if len(s.Transcripts) < p.transcripts {
		p.transcripts = 0
	}
	for _, t := range s.Transcripts[p.transcripts:] {
		speaker := "you"
		if t.Source == core.TranscriptSourceModel {
			speaker = "host"
			if host != "" {
				speaker = host
			}
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, t.Text))
	}
	p.transcripts = len(s.Transcripts)

	if s.Score != p.score {
		p.score = s.Score
		lines = append(lines, fmt.Sprintf("Score: %d", s.Score))
	}

	if s.Error != p.err {
		p.err = s.Error
		if s.Error != "" {
			lines = append(lines, "! "+s.Error)
		}
	}
	return lines
}
