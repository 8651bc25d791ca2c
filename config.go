package contestd

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/pelletier/go-toml"
)

const (
	DefaultScoreFreezeTime       = 60
	DefaultDirectSubmissionDelay = 10
	DefaultMaxSubmissionSize     = 10240
	DefaultMaxSubmissionHistory  = 24
)

var DefaultSolverLanguages = []string{
	"Java8", "Java11", "Java17", "Java21",
	"C11", "C++11", "C++17", "C++20",
	"Python3.12.3",
}

// ContestConfig holds the options of one contest type.
type ContestConfig struct {
	// Rounds allows more than one round per contest.
	Rounds            bool `toml:"rounds"`
	RestrictiveRounds bool `toml:"restrictive_rounds"`
	// ScoreFreezeTime is the number of minutes before the last round ends
	// during which the public scoreboard stops updating.
	ScoreFreezeTime int  `toml:"score_freeze_time"`
	WithholdResults bool `toml:"withhold_results"`
	// SubmitSolver sends submissions to judgehosts. Otherwise answers are
	// compared against the stored solution after DirectSubmissionDelay seconds.
	SubmitSolver            bool     `toml:"submit_solver"`
	DirectSubmissionDelay   int      `toml:"direct_submission_delay"`
	AcceptedSolverLanguages []string `toml:"accepted_solver_languages"`
	// MaxSubmissionSize is in bytes.
	MaxSubmissionSize int `toml:"max_submission_size"`
}

func DefaultContestConfig() ContestConfig {
	return ContestConfig{
		Rounds:                  true,
		ScoreFreezeTime:         DefaultScoreFreezeTime,
		SubmitSolver:            true,
		DirectSubmissionDelay:   DefaultDirectSubmissionDelay,
		AcceptedSolverLanguages: slices.Clone(DefaultSolverLanguages),
		MaxSubmissionSize:       DefaultMaxSubmissionSize,
	}
}

func (c ContestConfig) FreezeDuration() time.Duration {
	return time.Duration(c.ScoreFreezeTime) * time.Minute
}

func (c ContestConfig) SubmissionDelay() time.Duration {
	return time.Duration(c.DirectSubmissionDelay) * time.Second
}

type Config struct {
	MaxSubmissionHistory int                      `toml:"max_submission_history"`
	Contests             map[string]ContestConfig `toml:"contests"`
}

// ContestTypes returns the configured contest type names, sorted.
func (c *Config) ContestTypes() []string {
	return slices.Sorted(maps.Keys(c.Contests))
}

// MaxSubmissionSize returns the largest submission any contest type accepts.
func (c *Config) MaxSubmissionSize() int {
	size := 0
	for _, cc := range c.Contests {
		size = max(size, cc.MaxSubmissionSize)
	}

	return size
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig reads a contest configuration document, filling every missing
// key with its default.
func ParseConfig(data []byte) (*Config, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg := &Config{
		MaxSubmissionHistory: DefaultMaxSubmissionHistory,
		Contests:             make(map[string]ContestConfig),
	}
	if v, ok := tree.Get("max_submission_history").(int64); ok {
		cfg.MaxSubmissionHistory = int(v)
	}

	contests, ok := tree.Get("contests").(*toml.Tree)
	if !ok {
		return cfg, nil
	}
	for _, name := range contests.Keys() {
		sub, ok := contests.Get(name).(*toml.Tree)
		if !ok {
			return nil, fmt.Errorf("error parsing config file: contest type %q is not a table", name)
		}
		cc, err := contestConfig(sub)
		if err != nil {
			return nil, fmt.Errorf("error parsing contest type %q: %w", name, err)
		}
		cfg.Contests[name] = cc
	}

	return cfg, nil
}

func contestConfig(tree *toml.Tree) (ContestConfig, error) {
	cc := DefaultContestConfig()
	bools := map[string]*bool{
		"rounds":             &cc.Rounds,
		"restrictive_rounds": &cc.RestrictiveRounds,
		"withhold_results":   &cc.WithholdResults,
		"submit_solver":      &cc.SubmitSolver,
	}
	for key, dst := range bools {
		v, ok := tree.GetDefault(key, *dst).(bool)
		if !ok {
			return ContestConfig{}, fmt.Errorf("%s must be a boolean", key)
		}
		*dst = v
	}
	ints := map[string]*int{
		"score_freeze_time":       &cc.ScoreFreezeTime,
		"direct_submission_delay": &cc.DirectSubmissionDelay,
		"max_submission_size":     &cc.MaxSubmissionSize,
	}
	for key, dst := range ints {
		v, ok := tree.GetDefault(key, int64(*dst)).(int64)
		if !ok || v < 0 {
			return ContestConfig{}, fmt.Errorf("%s must be a non-negative integer", key)
		}
		*dst = int(v)
	}
	if tree.Has("accepted_solver_languages") {
		raw, ok := tree.Get("accepted_solver_languages").([]any)
		if !ok {
			return ContestConfig{}, fmt.Errorf("accepted_solver_languages must be a list of strings")
		}
		langs := make([]string, 0, len(raw))
		for _, l := range raw {
			s, ok := l.(string)
			if !ok {
				return ContestConfig{}, fmt.Errorf("accepted_solver_languages must be a list of strings")
			}
			langs = append(langs, s)
		}
		cc.AcceptedSolverLanguages = langs
	}

	return cc, nil
}

// Marshal renders cfg as a TOML document that ParseConfig reads back.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Order(toml.OrderPreserve).Encode(c); err != nil {
		return nil, fmt.Errorf("error encoding config: %w", err)
	}

	return buf.Bytes(), nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
