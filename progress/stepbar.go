// stepbar.go - Schritt-Fortschrittsbalken fuer Denoising-Steps.
package progress

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

const defaultTermWidth = 80

// StepBar displays denoising-step progress, one cell per step, capped to
// the terminal width.
type StepBar struct {
	message string
	current int
	total   int
}

func NewStepBar(message string, total int) *StepBar {
	return &StepBar{message: message, total: total}
}

func (s *StepBar) Set(current int) {
	if current > s.total {
		current = s.total
	}
	s.current = current
}

func (s *StepBar) String() string {
	termWidth, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil {
		termWidth = defaultTermWidth
	}

	barWidth := s.total
	filled := s.current
	if max := termWidth - len(s.message) - 20; barWidth > max && max > 0 {
		barWidth = max
		filled = s.current * barWidth / s.total
	}

	percent := float64(s.current) / float64(s.total) * 100

	// "Generating  40% ▕████      ▏ 4/10"
	return fmt.Sprintf("%s %3.0f%% ▕%s%s▏ %d/%d",
		s.message, percent,
		strings.Repeat("█", filled), strings.Repeat(" ", barWidth-filled),
		s.current, s.total)
}
