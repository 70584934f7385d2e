package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	API       *jsoncAPI       `json:"api"`
	Session   *jsoncSession   `json:"session"`
	Capture   *jsoncCapture   `json:"capture"`
	Narration *jsoncNarration `json:"narration"`
	Cues      *jsoncCues      `json:"cues"`
	UI        *jsoncUI        `json:"ui"`
	Log       *jsoncLog       `json:"log"`
	Debug     *jsoncDebug     `json:"debug"`
}

type jsoncAPI struct {
	BaseURL       *string `json:"base_url"`
	QuestionsPath *string `json:"questions_path"`
	UploadPath    *string `json:"upload_path"`
	TimeoutMS     *int    `json:"timeout_ms"`
	HealthGRPC    *string `json:"health_grpc"`
}

type jsoncSession struct {
	AutoStartSeconds *int    `json:"auto_start_seconds"`
	AnswerSeconds    *int    `json:"answer_seconds"`
	SettleMS         *int    `json:"settle_ms"`
	UploadDrainMS    *int    `json:"upload_drain_ms"`
	DeviceWaitMS     *int    `json:"device_wait_ms"`
	FallbackQuestion *string `json:"fallback_question"`
}

type jsoncCapture struct {
	FFmpegCmd     *string `json:"ffmpeg_cmd"`
	VideoDevice   *string `json:"video_device"`
	VideoFormat   *string `json:"video_format"`
	AudioInput    *string `json:"audio_input"`
	AudioFallback *string `json:"audio_fallback"`
	VideoCodec    *string `json:"video_codec"`
	AudioCodec    *string `json:"audio_codec"`
	StopTimeoutMS *int    `json:"stop_timeout_ms"`
	PlayerCmd     *string `json:"player_cmd"`
}

type jsoncNarration struct {
	Enable    *bool    `json:"enable"`
	BaseURL   *string  `json:"base_url"`
	APIKeyEnv *string  `json:"api_key_env"`
	Model     *string  `json:"model"`
	Voice     *string  `json:"voice"`
	Gender    *string  `json:"gender"`
	Language  *string  `json:"language"`
	Speed     *float64 `json:"speed"`
}

type jsoncCues struct {
	Enable       *bool   `json:"enable"`
	StartFile    *string `json:"start_file"`
	StopFile     *string `json:"stop_file"`
	CompleteFile *string `json:"complete_file"`
}

type jsoncUI struct {
	Language *string `json:"language"`
}

type jsoncLog struct {
	Level *string `json:"level"`
}

type jsoncDebug struct {
	ClipDump      *bool `json:"clip_dump"`
	NarrationDump *bool `json:"narration_dump"`
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
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if api := payload.API; api != nil {
		setString(&cfg.API.BaseURL, api.BaseURL)
		setString(&cfg.API.QuestionsPath, api.QuestionsPath)
		setString(&cfg.API.UploadPath, api.UploadPath)
		setInt(&cfg.API.TimeoutMS, api.TimeoutMS)
		setString(&cfg.API.HealthGRPC, api.HealthGRPC)
		cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	}

	if s := payload.Session; s != nil {
		setInt(&cfg.Session.AutoStartSeconds, s.AutoStartSeconds)
		setInt(&cfg.Session.AnswerSeconds, s.AnswerSeconds)
		setInt(&cfg.Session.SettleMS, s.SettleMS)
		setInt(&cfg.Session.UploadDrainMS, s.UploadDrainMS)
		setInt(&cfg.Session.DeviceWaitMS, s.DeviceWaitMS)
		setString(&cfg.Session.FallbackQuestion, s.FallbackQuestion)
	}

	if c := payload.Capture; c != nil {
		if c.FFmpegCmd != nil {
			cmd, err := ParseCommand(*c.FFmpegCmd)
			if err != nil {
				return nil, fmt.Errorf("invalid capture.ffmpeg_cmd: %w", err)
			}
			cfg.Capture.FFmpeg = cmd
		}
		setString(&cfg.Capture.VideoDevice, c.VideoDevice)
		setString(&cfg.Capture.VideoFormat, c.VideoFormat)
		setString(&cfg.Capture.AudioInput, c.AudioInput)
		setString(&cfg.Capture.AudioFallback, c.AudioFallback)
		setString(&cfg.Capture.VideoCodec, c.VideoCodec)
		setString(&cfg.Capture.AudioCodec, c.AudioCodec)
		setInt(&cfg.Capture.StopTimeoutMS, c.StopTimeoutMS)
		if c.PlayerCmd != nil {
			cmd, err := ParseCommand(*c.PlayerCmd)
			if err != nil {
				return nil, fmt.Errorf("invalid capture.player_cmd: %w", err)
			}
			cfg.Capture.Player = cmd
		}
		if cfg.Capture.VideoDevice == "" {
			warnings = append(warnings, Warning{Message: "capture.video_device is empty; recording audio only"})
		}
	}

	if n := payload.Narration; n != nil {
		setBool(&cfg.Narration.Enable, n.Enable)
		setString(&cfg.Narration.BaseURL, n.BaseURL)
		setString(&cfg.Narration.APIKeyEnv, n.APIKeyEnv)
		setString(&cfg.Narration.Model, n.Model)
		setString(&cfg.Narration.Voice, n.Voice)
		setString(&cfg.Narration.Gender, n.Gender)
		setString(&cfg.Narration.Language, n.Language)
		if n.Speed != nil {
			cfg.Narration.Speed = *n.Speed
		}
	}

	if c := payload.Cues; c != nil {
		setBool(&cfg.Cues.Enable, c.Enable)
		setString(&cfg.Cues.StartFile, c.StartFile)
		setString(&cfg.Cues.StopFile, c.StopFile)
		setString(&cfg.Cues.CompleteFile, c.CompleteFile)
	}

	if payload.UI != nil {
		setString(&cfg.UI.Language, payload.UI.Language)
	}

	if payload.Log != nil {
		setString(&cfg.Log.Level, payload.Log.Level)
	}

	if payload.Debug != nil {
		setBool(&cfg.Debug.ClipDump, payload.Debug.ClipDump)
		setBool(&cfg.Debug.NarrationDump, payload.Debug.NarrationDump)
	}

	return warnings, nil
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
