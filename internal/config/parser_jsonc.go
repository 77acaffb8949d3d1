package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	ProjectDirectory *string         `json:"project_directory"`
	Font             *jsoncFont      `json:"font"`
	Audio            *jsoncAudio     `json:"audio"`
	Text             *jsoncText      `json:"text"`
	Session          *jsoncSession   `json:"session"`
	Transport        *jsoncTransport `json:"transport"`
	Log              *jsoncLog       `json:"log"`
}

type jsoncFont struct {
	Family *string `json:"family"`
	Size   *int    `json:"size"`
}

type jsoncAudio struct {
	Input      *string `json:"input"`
	Output     *string `json:"output"`
	SampleRate *int    `json:"sample_rate"`
	Channels   *int    `json:"channels"`
}

type jsoncText struct {
	Abbreviations *bool `json:"abbreviations"`
}

type jsoncSession struct {
	Backend *string `json:"backend"`
	Path    *string `json:"path"`
}

type jsoncTransport struct {
	TickMS *int `json:"tick_ms"`
}

type jsoncLog struct {
	Level      *string `json:"level"`
	MaxSizeMB  *int    `json:"max_size_mb"`
	MaxBackups *int    `json:"max_backups"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	warnings := payload.applyTo(&cfg)

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) []Warning {
	warnings := make([]Warning, 0)

	if payload.ProjectDirectory != nil {
		cfg.ProjectDirectory = strings.TrimSpace(*payload.ProjectDirectory)
	}

	if payload.Font != nil {
		if payload.Font.Family != nil {
			cfg.Font.Family = strings.TrimSpace(*payload.Font.Family)
		}
		if payload.Font.Size != nil {
			cfg.Font.Size = *payload.Font.Size
		}
	}

	if payload.Audio != nil {
		if payload.Audio.Input != nil {
			cfg.Audio.Input = strings.TrimSpace(*payload.Audio.Input)
		}
		if payload.Audio.Output != nil {
			cfg.Audio.Output = strings.TrimSpace(*payload.Audio.Output)
		}
		if payload.Audio.SampleRate != nil {
			cfg.Audio.SampleRate = *payload.Audio.SampleRate
		}
		if payload.Audio.Channels != nil {
			cfg.Audio.Channels = *payload.Audio.Channels
		}
	}

	if payload.Text != nil && payload.Text.Abbreviations != nil {
		cfg.Text.Abbreviations = *payload.Text.Abbreviations
	}

	if payload.Session != nil {
		if payload.Session.Backend != nil {
			cfg.Session.Backend = strings.ToLower(strings.TrimSpace(*payload.Session.Backend))
		}
		if payload.Session.Path != nil {
			cfg.Session.Path = strings.TrimSpace(*payload.Session.Path)
		}
	}

	if payload.Transport != nil && payload.Transport.TickMS != nil {
		cfg.Transport.TickMS = *payload.Transport.TickMS
		if cfg.Transport.TickMS > 0 && cfg.Transport.TickMS != 1000 {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("transport.tick_ms=%d; counters will not advance in whole seconds", cfg.Transport.TickMS)})
		}
	}

	if payload.Log != nil {
		if payload.Log.Level != nil {
			cfg.Log.Level = strings.ToLower(strings.TrimSpace(*payload.Log.Level))
		}
		if payload.Log.MaxSizeMB != nil {
			cfg.Log.MaxSizeMB = *payload.Log.MaxSizeMB
		}
		if payload.Log.MaxBackups != nil {
			cfg.Log.MaxBackups = *payload.Log.MaxBackups
		}
	}

	return warnings
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
