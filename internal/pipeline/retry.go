package pipeline

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"

	"prodshot/internal/pkg/errors"
)

// errorClass is the result of classifying a collaborator failure before a
// retry or fallback decision.
type errorClass struct {
	// Quota marks rate/resource-limit failures.
	Quota bool
	// RetryAfter is the provider-suggested delay, zero when absent.
	RetryAfter time.Duration
}

func (c errorClass) String() string {
	if c.Quota {
		return "quota"
	}
	return "other"
}

var quotaMarkers = []string{
	"429",
	"quota",
	"resource_exhausted",
	"resource exhausted",
	"rate limit",
	"too many requests",
}

// Delay hints observed in provider error text:
//
//	"retryDelay": "19s"
//	Retry-After: 30
//	Please retry in 20.5s.
var delayPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)retrydelay"?\s*[:=]\s*"?(\d+(?:\.\d+)?)s?`),
	regexp.MustCompile(`(?i)retry[-_ ]after\s*[:=]?\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)retry in\s+(\d+(?:\.\d+)?)\s*s`),
}

// classifyError decides whether a collaborator failure is quota-related and
// extracts a provider-suggested retry delay when one is present. It inspects
// structured googleapi errors first and falls back to string patterns, so it
// works for any transport the provider SDK happens to use.
func classifyError(err error) errorClass {
	if err == nil {
		return errorClass{}
	}

	var class errorClass

	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		class.Quota = true
	}
	if errors.IsCode(err, errors.CodeResourceExhaust) {
		class.Quota = true
	}

	text := strings.ToLower(err.Error())
	if !class.Quota {
		for _, marker := range quotaMarkers {
			if strings.Contains(text, marker) {
				class.Quota = true
				break
			}
		}
	}

	if class.Quota {
		class.RetryAfter = suggestedDelay(err.Error())
	}

	return class
}

func suggestedDelay(text string) time.Duration {
	for _, re := range delayPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		seconds, err := strconv.ParseFloat(m[1], 64)
		if err != nil || seconds <= 0 {
			continue
		}
		return time.Duration(seconds * float64(time.Second))
	}
	return 0
}

// backoffDelay returns how long to sleep before the next attempt: the
// provider-suggested delay when the failure is quota-classified and one was
// given, otherwise step multiplied by the 1-based attempt number.
func backoffDelay(class errorClass, attempt int, step time.Duration) time.Duration {
	if class.Quota && class.RetryAfter > 0 {
		return class.RetryAfter
	}
	return step * time.Duration(attempt)
}
