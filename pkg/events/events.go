// Package events decodes the notifications that trigger the pipeline: S3
// object-created events and Textract job-completion messages, either raw or
// delivered inside an SNS envelope.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrNoRecords = errors.New("event contains no object records")

// SNS message types.
const (
	SNSNotification             = "Notification"
	SNSSubscriptionConfirmation = "SubscriptionConfirmation"
	SNSUnsubscribeConfirmation  = "UnsubscribeConfirmation"
)

// Envelope is the JSON body SNS posts to HTTP subscribers.
type Envelope struct {
	Type         string `json:"Type"`
	MessageID    string `json:"MessageId"`
	TopicArn     string `json:"TopicArn"`
	Subject      string `json:"Subject,omitempty"`
	Message      string `json:"Message"`
	Timestamp    string `json:"Timestamp"`
	SubscribeURL string `json:"SubscribeURL,omitempty"`
	Token        string `json:"Token,omitempty"`
}

// ParseEnvelope returns the SNS envelope in body, or ok=false when body is
// not an SNS message.
func ParseEnvelope(body []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, false
	}
	if env.Type == "" || env.TopicArn == "" {
		return Envelope{}, false
	}
	return env, true
}

// unwrap returns the inner message when body is an SNS notification.
func unwrap(body []byte) []byte {
	if env, ok := ParseEnvelope(body); ok && env.Type == SNSNotification {
		return []byte(env.Message)
	}
	return body
}

// ObjectRef identifies one uploaded object.
type ObjectRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

type s3Event struct {
	Records []struct {
		EventName string `json:"eventName"`
		S3        struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key  string `json:"key"`
				Size int64  `json:"size"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// ParseS3Event returns every object referenced by an S3 event notification.
// Keys arrive form-encoded and are decoded here.
func ParseS3Event(body []byte) ([]ObjectRef, error) {
	var evt s3Event
	if err := json.Unmarshal(unwrap(body), &evt); err != nil {
		return nil, fmt.Errorf("failed to decode s3 event: %w", err)
	}
	if len(evt.Records) == 0 {
		return nil, ErrNoRecords
	}

	refs := make([]ObjectRef, 0, len(evt.Records))
	for i, rec := range evt.Records {
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid object key %q: %w", i, rec.S3.Object.Key, err)
		}
		if rec.S3.Bucket.Name == "" || key == "" {
			return nil, fmt.Errorf("record %d: missing bucket or key", i)
		}
		refs = append(refs, ObjectRef{Bucket: rec.S3.Bucket.Name, Key: key})
	}
	return refs, nil
}

// Textract job status values.
const (
	JobSucceeded = "SUCCEEDED"
	JobFailed    = "FAILED"
	JobError     = "ERROR"
)

// AnalysisNotification is the message Textract publishes when an
// asynchronous job finishes.
type AnalysisNotification struct {
	JobID            string `json:"JobId"`
	Status           string `json:"Status"`
	API              string `json:"API"`
	JobTag           string `json:"JobTag,omitempty"`
	Timestamp        int64  `json:"Timestamp"`
	DocumentLocation struct {
		S3ObjectName string `json:"S3ObjectName"`
		S3Bucket     string `json:"S3Bucket"`
	} `json:"DocumentLocation"`
}

func (n AnalysisNotification) Bucket() string { return n.DocumentLocation.S3Bucket }
func (n AnalysisNotification) Key() string    { return n.DocumentLocation.S3ObjectName }

// Succeeded reports whether the job produced results.
func (n AnalysisNotification) Succeeded() bool {
	return strings.EqualFold(n.Status, JobSucceeded)
}

// ParseAnalysisNotification decodes a Textract completion message.
func ParseAnalysisNotification(body []byte) (AnalysisNotification, error) {
	var n AnalysisNotification
	if err := json.Unmarshal(unwrap(body), &n); err != nil {
		return AnalysisNotification{}, fmt.Errorf("failed to decode analysis notification: %w", err)
	}
	if n.JobID == "" {
		return AnalysisNotification{}, errors.New("analysis notification has no JobId")
	}
	if n.Bucket() == "" || n.Key() == "" {
		return AnalysisNotification{}, errors.New("analysis notification has no document location")
	}
	return n, nil
}
