package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const s3Body = `{
  "Records": [
    {
      "eventName": "ObjectCreated:Put",
      "s3": {
        "bucket": {"name": "statements"},
        "object": {"key": "uploads/abc-2024-05-01-my+statement%282%29.pdf", "size": 1024}
      }
    }
  ]
}`

const textractBody = `{
  "JobId": "job-123",
  "Status": "SUCCEEDED",
  "API": "StartDocumentAnalysis",
  "Timestamp": 1714560000000,
  "DocumentLocation": {"S3ObjectName": "uploads/a.pdf", "S3Bucket": "statements"}
}`

func snsWrap(t *testing.T, msg string) []byte {
	t.Helper()
	body, err := json.Marshal(Envelope{
		Type:      SNSNotification,
		MessageID: "m-1",
		TopicArn:  "arn:aws:sns:eu-west-2:000000000000:TextractJobComplete",
		Message:   msg,
	})
	require.NoError(t, err)
	return body
}

func TestParseS3EventDecodesKeys(t *testing.T) {
	for name, body := range map[string][]byte{
		"raw": []byte(s3Body),
		"sns": snsWrap(t, s3Body),
	} {
		t.Run(name, func(t *testing.T) {
			refs, err := ParseS3Event(body)
			require.NoError(t, err)
			require.Len(t, refs, 1)
			assert.Equal(t, "statements", refs[0].Bucket)
			assert.Equal(t, "uploads/abc-2024-05-01-my statement(2).pdf", refs[0].Key)
		})
	}
}

func TestParseS3EventErrors(t *testing.T) {
	_, err := ParseS3Event([]byte(`{"Records": []}`))
	assert.ErrorIs(t, err, ErrNoRecords)

	_, err = ParseS3Event([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseS3Event([]byte(`{"Records": [{"s3": {"bucket": {"name": ""}, "object": {"key": "k"}}}]}`))
	assert.Error(t, err)
}

func TestParseAnalysisNotification(t *testing.T) {
	for name, body := range map[string][]byte{
		"raw": []byte(textractBody),
		"sns": snsWrap(t, textractBody),
	} {
		t.Run(name, func(t *testing.T) {
			n, err := ParseAnalysisNotification(body)
			require.NoError(t, err)
			assert.Equal(t, "job-123", n.JobID)
			assert.Equal(t, "statements", n.Bucket())
			assert.Equal(t, "uploads/a.pdf", n.Key())
			assert.True(t, n.Succeeded())
		})
	}
}

func TestParseAnalysisNotificationRequiresFields(t *testing.T) {
	_, err := ParseAnalysisNotification([]byte(`{"Status": "SUCCEEDED"}`))
	assert.Error(t, err)

	_, err = ParseAnalysisNotification([]byte(`{"JobId": "j"}`))
	assert.Error(t, err)
}

func TestParseEnvelopeSubscriptionConfirmation(t *testing.T) {
	body := []byte(`{"Type":"SubscriptionConfirmation","TopicArn":"arn:aws:sns:eu-west-2:1:t","SubscribeURL":"https://sns.eu-west-2.amazonaws.com/?Action=ConfirmSubscription","Token":"tok"}`)

	env, ok := ParseEnvelope(body)
	require.True(t, ok)
	assert.Equal(t, SNSSubscriptionConfirmation, env.Type)
	assert.Equal(t, "tok", env.Token)

	_, ok = ParseEnvelope([]byte(s3Body))
	assert.False(t, ok)
}
