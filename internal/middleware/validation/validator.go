package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/glycowatch/backend/internal/schema"
)

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|<object|<embed|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	MaxQueryLength      int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

type patientBody struct {
	Patient map[string]json.RawMessage `json:"patient"`
}

type suggestBody struct {
	Query string `json:"query"`
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength == 0 {
		cfg.MaxQueryLength = 2000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		allowed := false
		for _, allowedType := range cfg.AllowedContentTypes {
			if strings.HasPrefix(contentType, allowedType) {
				allowed = true
				break
			}
		}
		if !allowed {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		path := c.Path()

		if strings.HasSuffix(path, "/assess") {
			var req patientBody
			if err := json.Unmarshal(c.Body(), &req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			if problems := CheckPatient(req.Patient); len(problems) > 0 {
				cfg.Logger.Debug("Patient summary rejected", zap.Any("fields", problems))
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error":  "Invalid patient summary",
					"fields": problems,
				})
			}
		}

		if strings.HasSuffix(path, "/suggest") {
			var req suggestBody
			if err := json.Unmarshal(c.Body(), &req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			// blank queries pass; the advisor answers them with a prompt
			if err := CheckQuery(req.Query, cfg.MaxQueryLength); err != nil {
				cfg.Logger.Warn("Suggestion query rejected",
					zap.String("ip", c.IP()),
					zap.Error(err),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": err.Error(),
				})
			}
		}

		return c.Next()
	}
}

// CheckPatient validates a raw JSON patient object against the widget ranges
// and returns one message per offending field.
func CheckPatient(raw map[string]json.RawMessage) map[string]string {
	problems := make(map[string]string)
	if raw == nil {
		problems["patient"] = "is required"
		return problems
	}

	for _, r := range schema.Ranges() {
		msg, ok := raw[r.Field]
		if !ok {
			problems[r.Field] = "is required"
			continue
		}
		var v float64
		if err := json.Unmarshal(msg, &v); err != nil {
			problems[r.Field] = "must be a number"
			continue
		}
		if !r.Contains(v) {
			problems[r.Field] = rangeMessage(r)
		}
	}

	for name := range raw {
		if _, ok := schema.RangeFor(name); !ok {
			problems[name] = "is not a recognised field"
		}
	}

	return problems
}

// CheckSummary applies the widget ranges to an already decoded summary.
func CheckSummary(p schema.PatientSummary) map[string]string {
	problems := make(map[string]string)
	for _, f := range p.Fields() {
		r, ok := schema.RangeFor(f.Name)
		if ok && !r.Contains(f.Value) {
			problems[f.Name] = rangeMessage(r)
		}
	}
	return problems
}

func CheckQuery(query string, maxLength int) error {
	if len(query) > maxLength {
		return fmt.Errorf("query exceeds maximum length of %d characters", maxLength)
	}
	if xssPattern.MatchString(query) {
		return errors.New("query contains markup or script content")
	}
	return nil
}

func rangeMessage(r schema.Range) string {
	return fmt.Sprintf("must be between %g and %g", r.Min, r.Max)
}
