// Package interviewapi talks to the interview backend: it fetches the
// question list for a job and uploads recorded answers.
package interviewapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rbright/proctor/internal/config"
	"github.com/rbright/proctor/internal/domain"
	"github.com/rbright/proctor/internal/version"
)

const maxErrorBody = 512

// Client is the HTTP adapter for the interview backend.
type Client struct {
	baseURL       string
	questionsPath string
	uploadPath    string
	http          *http.Client
}

// New builds a Client from api config.
func New(cfg config.APIConfig) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		questionsPath: cfg.QuestionsPath,
		uploadPath:    cfg.UploadPath,
		http:          &http.Client{Timeout: cfg.Timeout()},
	}
}

// QuestionsURL returns the question endpoint for jobID.
func (c *Client) QuestionsURL(jobID string) string {
	return c.baseURL + strings.ReplaceAll(c.questionsPath, "{job_id}", url.PathEscape(jobID))
}

// UploadURL returns the answer endpoint for interviewID.
func (c *Client) UploadURL(interviewID string) string {
	return c.baseURL + c.uploadPath + "?" + url.Values{"interview_id": {interviewID}}.Encode()
}

// FetchQuestions loads the ordered question list. Both {"questions": [...]}
// and a bare array are accepted; failures wrap domain.ErrQuestionFetchFailed.
func (c *Client) FetchQuestions(ctx context.Context, jobID string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.QuestionsURL(jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrQuestionFetchFailed, err)
	}
	c.decorate(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrQuestionFetchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrQuestionFetchFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrQuestionFetchFailed, resp.StatusCode, truncate(body))
	}

	questions, err := decodeQuestions(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrQuestionFetchFailed, err)
	}
	return questions, nil
}

func decodeQuestions(body []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response")
	}

	var list []string
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode question list: %w", err)
		}
	case '{':
		var envelope struct {
			Questions *[]string `json:"questions"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("decode question envelope: %w", err)
		}
		if envelope.Questions == nil {
			return nil, errors.New(`response has no "questions" field`)
		}
		list = *envelope.Questions
	default:
		return nil, errors.New("response is neither an object nor an array")
	}

	questions := make([]string, 0, len(list))
	for _, q := range list {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

// Upload posts one clip as multipart form data with fields video_file and
// question. Failures wrap domain.ErrUploadFailed.
func (c *Client) Upload(ctx context.Context, interviewID string, clip domain.Clip) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("video_file", fmt.Sprintf("answer-%d.webm", clip.QuestionIndex+1))
	if err != nil {
		return fmt.Errorf("%w: build form: %v", domain.ErrUploadFailed, err)
	}
	if _, err := part.Write(clip.Media); err != nil {
		return fmt.Errorf("%w: build form: %v", domain.ErrUploadFailed, err)
	}
	if err := form.WriteField("question", clip.Question); err != nil {
		return fmt.Errorf("%w: build form: %v", domain.ErrUploadFailed, err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("%w: build form: %v", domain.ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.UploadURL(interviewID), &body)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrUploadFailed, err)
	}
	c.decorate(req)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: status %d: %s", domain.ErrUploadFailed, resp.StatusCode, truncate(detail))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Ping requests the backend root and returns the HTTP status it answered with.
func (c *Client) Ping(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return 0, err
	}
	c.decorate(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", uuid.NewString())
}

func truncate(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		return text[:maxErrorBody] + "..."
	}
	return text
}
