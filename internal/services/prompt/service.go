package prompt

import (
	"bufio"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/mcoot/typerace/internal/dependencies/random"
	"github.com/mcoot/typerace/internal/model"
)

// DefaultSentences is the built-in challenge corpus
var DefaultSentences = []string{
	"Actions speak louder than words.",
	"When life gives you lemons, make lemonade.",
	"Knowledge is power.",
	"Time flies when you are having fun.",
	"There is no place like home.",
	"A journey of a thousand miles begins with a single step.",
}

// Service holds the sentences players are asked to type
type Service struct {
	random random.Random

	mu        sync.RWMutex
	sentences []string
}

// New creates a corpus seeded with DefaultSentences
func New(random random.Random) *Service {
	return &Service{
		random:    random,
		sentences: slices.Clone(DefaultSentences),
	}
}

// LoadFromFile replaces the corpus with the non-blank lines of path
func (s *Service) LoadFromFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var sentences []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		sentence := strings.TrimSpace(scanner.Text())
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return s.LoadSentences(sentences)
}

// LoadSentences replaces the corpus. Sentences containing a line that
// would end a frame are rejected along with empty input.
func (s *Service) LoadSentences(sentences []string) error {
	var kept []string
	for _, sentence := range sentences {
		if sentence == "" || strings.Contains(sentence, "\n") || strings.HasSuffix(sentence, "END") {
			continue
		}
		kept = append(kept, sentence)
	}
	if len(kept) == 0 {
		return model.ErrCorpusEmpty
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentences = kept
	return nil
}

// Pick returns a sentence chosen uniformly at random
func (s *Service) Pick() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sentences[s.random.Intn(len(s.sentences))]
}

// Count returns the corpus size
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sentences)
}
