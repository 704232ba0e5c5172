package events

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const topic = "arn:aws:sns:eu-west-2:000000000000:TextractJobComplete"

type recordingTransport struct {
	urls   []string
	status int
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.urls = append(rt.urls, req.URL.String())
	return &http.Response{
		StatusCode: rt.status,
		Body:       io.NopCloser(strings.NewReader("<ConfirmSubscriptionResponse/>")),
		Header:     http.Header{},
		Request:    req,
	}, nil
}

func confirmation(subscribeURL string) Envelope {
	return Envelope{
		Type:         SNSSubscriptionConfirmation,
		TopicArn:     topic,
		SubscribeURL: subscribeURL,
	}
}

func TestConfirmVisitsSubscribeURL(t *testing.T) {
	rt := &recordingTransport{status: http.StatusOK}
	c := NewConfirmer([]string{topic}, &http.Client{Transport: rt})

	url := "https://sns.eu-west-2.amazonaws.com/?Action=ConfirmSubscription&Token=abc"
	require.NoError(t, c.Confirm(context.Background(), confirmation(url)))
	assert.Equal(t, []string{url}, rt.urls)
}

func TestConfirmRejects(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
	}{
		{"unknown topic", Envelope{Type: SNSSubscriptionConfirmation, TopicArn: "arn:other", SubscribeURL: "https://sns.us-east-1.amazonaws.com/"}},
		{"plain http", confirmation("http://sns.us-east-1.amazonaws.com/")},
		{"foreign host", confirmation("https://169.254.169.254/latest/meta-data")},
		{"lookalike host", confirmation("https://sns.us-east-1.amazonaws.com.evil.example/")},
		{"non sns aws host", confirmation("https://s3.amazonaws.com/")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &recordingTransport{status: http.StatusOK}
			c := NewConfirmer([]string{topic}, &http.Client{Transport: rt})

			assert.Error(t, c.Confirm(context.Background(), tt.env))
			assert.Empty(t, rt.urls)
		})
	}
}

func TestConfirmNon200(t *testing.T) {
	rt := &recordingTransport{status: http.StatusForbidden}
	c := NewConfirmer([]string{topic}, &http.Client{Transport: rt})

	err := c.Confirm(context.Background(), confirmation("https://sns.eu-west-2.amazonaws.com/?Token=x"))
	assert.ErrorContains(t, err, "status 403")
}
