package sample

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/askiada/go-stepchain/pkg/pipeline"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected http status")
	ErrInvalidJSON      = errors.New("response is not valid json")
	ErrMissingField     = errors.New("record field is missing")
)

// maxBodySize bounds the response read by RequestStep.
const maxBodySize = 10 << 20

// Record is one translated entry of a feed.
type Record struct {
	Date    string `json:"date"`
	User    string `json:"user"`
	Content string `json:"content"`
}

// Feed is the translated response.
type Feed struct {
	Query   string   `json:"query"`
	Results []Record `json:"results"`
}

// Payload is the value flowing through the feed pipeline. The initial entry
// only carries URL.
type Payload struct {
	URL    string
	Body   string
	Doc    gjson.Result
	Feed   *Feed
	Status int
}

// Mapping names the JSON paths translated into a Feed. Record paths are
// relative to an element of Results.
type Mapping struct {
	Query   string
	Results string
	Date    string
	User    string
	Content string
}

// DefaultMapping reads a search API answer shaped like
// {"query": ..., "results": [{"created_at", "from_user", "text"}]}.
var DefaultMapping = Mapping{
	Query:   "query",
	Results: "results",
	Date:    "created_at",
	User:    "from_user",
	Content: "text",
}

// RequestStep fetches the URL of the initial payload in the background.
func RequestStep(client *http.Client) pipeline.Runner[Payload] {
	if client == nil {
		client = http.DefaultClient
	}

	return func(ctx context.Context, results []Payload, next pipeline.Continuation[Payload]) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, results[0].URL, http.NoBody)
		if err != nil {
			return errors.Wrap(err, "unable to build request")
		}

		go func() {
			payload, err := get(client, req)
			if err != nil {
				next(pipeline.Fail[Payload](err))

				return
			}
			next(pipeline.Ok(payload))
		}()

		return nil
	}
}

func get(client *http.Client, req *http.Request) (Payload, error) {
	resp, err := client.Do(req)
	if err != nil {
		return Payload{}, errors.Wrapf(err, "unable to get %s", req.URL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Payload{Status: resp.StatusCode}, errors.Wrapf(ErrUnexpectedStatus, "%s: %s", req.URL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Payload{}, errors.Wrapf(err, "unable to read %s", req.URL)
	}

	return Payload{Status: resp.StatusCode, Body: string(body)}, nil
}

// ParseStep parses the body returned by the previous step.
func ParseStep(_ context.Context, results []Payload) (Payload, error) {
	body := results[len(results)-1].Body
	if !gjson.Valid(body) {
		return Payload{}, ErrInvalidJSON
	}

	return Payload{Doc: gjson.Parse(body)}, nil
}

// TranslateStep maps the parsed document to a Feed. Every record must have
// a date, a user and a content.
func TranslateStep(mapping Mapping) pipeline.Runner[Payload] {
	return pipeline.Func(func(_ context.Context, results []Payload) (Payload, error) {
		doc := results[len(results)-1].Doc

		feed := &Feed{
			Query:   doc.Get(mapping.Query).String(),
			Results: make([]Record, 0),
		}

		var err error
		doc.Get(mapping.Results).ForEach(func(_, value gjson.Result) bool {
			rec := Record{
				Date:    value.Get(mapping.Date).String(),
				User:    value.Get(mapping.User).String(),
				Content: value.Get(mapping.Content).String(),
			}
			if rec.Date == "" || rec.User == "" || rec.Content == "" {
				err = errors.Wrapf(ErrMissingField, "record %d", len(feed.Results))

				return false
			}
			feed.Results = append(feed.Results, rec)

			return true
		})
		if err != nil {
			return Payload{}, err
		}

		return Payload{Feed: feed}, nil
	})
}

// NewFeedReader returns the request, parse then translate pipeline.
func NewFeedReader(client *http.Client, mapping Mapping, opts ...pipeline.Option) (*pipeline.Pipeline[Payload], error) {
	pipe, err := pipeline.New[Payload]("Api Feed", opts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create feed reader")
	}

	pipe.
		Use(RequestStep(client), pipeline.StepName("Request api")).
		Use(pipeline.Func(ParseStep), pipeline.StepName("Parse response")).
		Use(TranslateStep(mapping), pipeline.StepName("Translate result"))

	return pipe, nil
}

// FeedOf returns the feed at the end of a complete result log.
func FeedOf(results []Payload) (*Feed, error) {
	if len(results) == 0 || results[len(results)-1].Feed == nil {
		return nil, errors.New("result log holds no feed")
	}

	return results[len(results)-1].Feed, nil
}
