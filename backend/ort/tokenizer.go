//go:build ort

// tokenizer.go - CLIP BPE-Tokenizer fuer den Text-Encoder.
//
// Dieses Modul enthaelt:
// - Vokabular- und Merge-Laden aus dem tokenizer-Verzeichnis
// - Pre-Tokenisierung ueber das CLIP-Pattern
// - BPE-Merging und Padding auf die Kontextlaenge
package ort

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dlclark/regexp2"
)

const contextLength = 77

// CLIP pre-tokenization pattern from the original vocabulary release.
var clipPattern = regexp2.MustCompile(
	`<\|startoftext\|>|<\|endoftext\|>|'s|'t|'re|'ve|'m|'ll|'d|[\p{L}]+|[\p{N}]|[^\s\p{L}\p{N}]+`,
	regexp2.IgnoreCase)

type clipTokenizer struct {
	vocab map[string]int
	ranks map[[2]string]int
	bos   int
	eos   int
}

// loadTokenizer reads vocab.json and merges.txt from dir.
func loadTokenizer(dir string) (*clipTokenizer, error) {
	vocabData, err := os.ReadFile(filepath.Join(dir, "vocab.json"))
	if err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	vocab := make(map[string]int)
	if err := json.Unmarshal(vocabData, &vocab); err != nil {
		return nil, fmt.Errorf("parse vocab: %w", err)
	}

	mergesData, err := os.ReadFile(filepath.Join(dir, "merges.txt"))
	if err != nil {
		return nil, fmt.Errorf("read merges: %w", err)
	}
	ranks := make(map[[2]string]int)
	rank := 0
	for _, line := range strings.Split(string(mergesData), "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) == 2 {
			ranks[[2]string{parts[0], parts[1]}] = rank
			rank++
		}
	}

	bos, ok := vocab["<|startoftext|>"]
	if !ok {
		return nil, fmt.Errorf("vocab missing start token")
	}
	eos, ok := vocab["<|endoftext|>"]
	if !ok {
		return nil, fmt.Errorf("vocab missing end token")
	}

	return &clipTokenizer{vocab: vocab, ranks: ranks, bos: bos, eos: eos}, nil
}

// Encode tokenizes text into exactly contextLength ids, truncating long
// prompts and padding short ones with the end token.
func (t *clipTokenizer) Encode(text string) []int {
	ids := []int{t.bos}

	text = strings.ToLower(strings.TrimSpace(text))
	m, err := clipPattern.FindStringMatch(text)
	for err == nil && m != nil {
		for _, id := range t.bpe(m.String()) {
			ids = append(ids, id)
		}
		m, err = clipPattern.FindNextMatch(m)
	}

	if len(ids) > contextLength-1 {
		ids = ids[:contextLength-1]
	}
	ids = append(ids, t.eos)
	for len(ids) < contextLength {
		ids = append(ids, t.eos)
	}
	return ids
}

// bpe merges the characters of one pre-token by ascending merge rank. The
// final character carries the </w> word-end marker.
func (t *clipTokenizer) bpe(token string) []int {
	runes := []rune(token)
	if len(runes) == 0 {
		return nil
	}
	parts := make([]string, len(runes))
	for i, r := range runes {
		parts[i] = string(r)
	}
	parts[len(parts)-1] += "</w>"

	for len(parts) > 1 {
		bestRank := -1
		bestIdx := -1
		for i := 0; i < len(parts)-1; i++ {
			if rank, ok := t.ranks[[2]string{parts[i], parts[i+1]}]; ok {
				if bestRank < 0 || rank < bestRank {
					bestRank = rank
					bestIdx = i
				}
			}
		}
		if bestIdx < 0 {
			break
		}
		merged := parts[bestIdx] + parts[bestIdx+1]
		parts = append(parts[:bestIdx+1], parts[bestIdx+2:]...)
		parts[bestIdx] = merged
	}

	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		if id, ok := t.vocab[p]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
