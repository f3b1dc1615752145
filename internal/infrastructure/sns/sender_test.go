package sns

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-identity-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*sns.PublishOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestDeliverOTP_PublishesJSON(t *testing.T) {
	mp := &mockPublisher{}
	mp.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		var msg otpMessage
		if err := json.Unmarshal([]byte(aws.ToString(in.Message)), &msg); err != nil {
			return false
		}
		attr := in.MessageAttributes["event_type"]
		return aws.ToString(in.TopicArn) == "arn:topic" &&
			msg.Email == "a@b.com" && msg.Code == "012345" &&
			aws.ToString(attr.StringValue) == EventOTPRequested
	})).Return(&sns.PublishOutput{}, nil)

	p := &OTPPublisher{client: mp, topicARN: "arn:topic"}
	require.NoError(t, p.DeliverOTP(context.Background(), "a@b.com", "012345"))
	mp.AssertExpectations(t)
}

func TestDeliverOTP_WrapsError(t *testing.T) {
	mp := &mockPublisher{}
	boom := errors.New("throttled")
	mp.On("Publish", mock.Anything, mock.Anything).Return(nil, boom)

	p := &OTPPublisher{client: mp, topicARN: "arn:topic"}
	assert.ErrorIs(t, p.DeliverOTP(context.Background(), "a@b.com", "1"), boom)
}

func TestNewOTPPublisher_RequiresTopic(t *testing.T) {
	_, err := NewOTPPublisher(context.Background(), &config.Config{})
	assert.ErrorContains(t, err, "SNS_OTP_TOPIC_ARN")
}
