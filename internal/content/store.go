// Package content holds the read-only, language-keyed strings shown by the bot.
//
// A document maps a language code to plain strings, a "buttons" map and a
// "faq" map with <id>_q / <id>_a entries. Lookups never fail: a missing key
// resolves to a placeholder that names the key, so gaps show up in the chat
// instead of breaking the conversation.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLanguage is used whenever a session has not picked a language yet.
const DefaultLanguage = "en"

const (
	buttonsKey = "buttons"
	faqKey     = "faq"

	questionSuffix = "_q"
	answerSuffix   = "_a"
)

// ErrEmptyDocument is returned when a document defines no languages.
var ErrEmptyDocument = errors.New("content: document defines no languages")

// Entry is a single FAQ question with its answer.
type Entry struct {
	Question string
	Answer   string
}

// Document is the per-language part of the content file.
type Document struct {
	Strings map[string]string
	Buttons map[string]string
	FAQ     map[string]string
}

// Store resolves display strings. It is immutable after Load/Parse, so it is safe for concurrent use.
type Store struct {
	docs map[string]Document
}

// Load reads and parses the document at path. The format follows the file
// extension: .yaml/.yml are YAML, anything else is JSON.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("content: read %s: %w", path, err)
	}
	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}
	s, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("content: parse %s: %w", path, err)
	}
	return s, nil
}

// Format selects the document decoder.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// Parse builds a Store from raw document bytes.
func Parse(data []byte, format Format) (*Store, error) {
	raw := map[string]map[string]any{}
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrEmptyDocument
	}

	docs := make(map[string]Document, len(raw))
	for lang, values := range raw {
		lang = strings.ToLower(strings.TrimSpace(lang))
		doc := Document{
			Strings: map[string]string{},
			Buttons: map[string]string{},
			FAQ:     map[string]string{},
		}
		for key, v := range values {
			switch key {
			case buttonsKey:
				if doc.Buttons, err = stringMap(v); err != nil {
					return nil, fmt.Errorf("%s.%s: %w", lang, key, err)
				}
			case faqKey:
				if doc.FAQ, err = stringMap(v); err != nil {
					return nil, fmt.Errorf("%s.%s: %w", lang, key, err)
				}
			default:
				s, ok := v.(string)
				if !ok {
					return nil, fmt.Errorf("%s.%s: expected string, got %T", lang, key, v)
				}
				doc.Strings[key] = s
			}
		}
		docs[lang] = doc
	}
	return &Store{docs: docs}, nil
}

func stringMap(v any) (map[string]string, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected mapping, got %T", v)
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("%s: expected string, got %T", k, val)
		}
		out[k] = s
	}
	return out, nil
}

// Languages returns the language codes defined by the document, sorted.
func (s *Store) Languages() []string {
	langs := make([]string, 0, len(s.docs))
	for lang := range s.docs {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// HasLanguage reports whether the document defines lang.
func (s *Store) HasLanguage(lang string) bool {
	_, ok := s.docs[lang]
	return ok
}

// Text returns a top-level string for lang or a placeholder naming the key.
func (s *Store) Text(key, lang string) string {
	if v, ok := s.docs[lang].Strings[key]; ok {
		return v
	}
	return MissingText(key)
}

// LookupText is Text without the placeholder.
func (s *Store) LookupText(key, lang string) (string, bool) {
	v, ok := s.docs[lang].Strings[key]
	return v, ok
}

// ButtonText returns a button caption for lang or a placeholder naming the key.
func (s *Store) ButtonText(key, lang string) string {
	if v, ok := s.docs[lang].Buttons[key]; ok {
		return v
	}
	return MissingButton(key)
}

// Question returns the question text of an FAQ id.
func (s *Store) Question(id, lang string) string {
	key := id + questionSuffix
	if v, ok := s.docs[lang].FAQ[key]; ok {
		return v
	}
	return MissingText(key)
}

// Answer returns the answer text of an FAQ id and whether it exists.
func (s *Store) Answer(id, lang string) (string, bool) {
	v, ok := s.docs[lang].FAQ[id+answerSuffix]
	return v, ok
}

// FAQ returns both texts of an FAQ id; missing parts are placeholders.
func (s *Store) FAQ(id, lang string) Entry {
	answer, ok := s.Answer(id, lang)
	if !ok {
		answer = MissingText(id + answerSuffix)
	}
	return Entry{Question: s.Question(id, lang), Answer: answer}
}

// Missing lists "<lang>.<key>" for every required string, button and FAQ
// entry that the document lacks. An empty result means the content is complete.
func (s *Store) Missing(langs, faqIDs []string) []string {
	var out []string
	for _, lang := range langs {
		doc, ok := s.docs[lang]
		if !ok {
			out = append(out, lang+".*")
			continue
		}
		for _, key := range RequiredStrings {
			if _, ok := doc.Strings[key]; !ok {
				out = append(out, lang+"."+key)
			}
		}
		for _, key := range RequiredButtons {
			if _, ok := doc.Buttons[key]; !ok {
				out = append(out, lang+"."+buttonsKey+"."+key)
			}
		}
		for _, id := range faqIDs {
			for _, key := range []string{id + questionSuffix, id + answerSuffix} {
				if _, ok := doc.FAQ[key]; !ok {
					out = append(out, lang+"."+faqKey+"."+key)
				}
			}
		}
	}
	return out
}

// RequiredStrings are the top-level keys the conversation renders.
var RequiredStrings = []string{
	"welcome",
	"select_language",
	"selection_confirmation",
	"faq_prompt",
	"error_handler",
	"end_chat_message",
}

// RequiredButtons are the button captions the conversation renders.
var RequiredButtons = []string{"lang_en", "lang_hi", "ask_another", "end_chat"}

// MissingText is the placeholder shown for an unresolved string key.
func MissingText(key string) string {
	return fmt.Sprintf("Error: Key '%s' not found.", key)
}

// MissingButton is the placeholder shown for an unresolved button key.
func MissingButton(key string) string {
	return fmt.Sprintf("Error: Btn '%s' not found.", key)
}

// IsPlaceholder reports whether v is a placeholder produced by a failed lookup.
func IsPlaceholder(v string) bool {
	return strings.HasPrefix(v, "Error: Key '") || strings.HasPrefix(v, "Error: Btn '")
}
