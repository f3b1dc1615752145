package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-identity-api/internal/config"
)

// EventOTPRequested is the event_type attribute on published OTP messages.
const EventOTPRequested = "otp.requested"

type publishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// OTPPublisher hands one-time codes to a mail worker through an SNS topic
// instead of talking SMTP directly.
type OTPPublisher struct {
	client   publishAPI
	topicARN string
}

type otpMessage struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func NewOTPPublisher(ctx context.Context, cfg *config.Config) (*OTPPublisher, error) {
	if cfg.SNSOTPTopicARN == "" {
		return nil, fmt.Errorf("SNS_OTP_TOPIC_ARN is not set")
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SNSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		}
	})
	return &OTPPublisher{client: client, topicARN: cfg.SNSOTPTopicARN}, nil
}

// DeliverOTP publishes the code for email. The message body is JSON
// {"email": ..., "code": ...}.
func (p *OTPPublisher) DeliverOTP(ctx context.Context, email, code string) error {
	body, err := json.Marshal(otpMessage{Email: email, Code: code})
	if err != nil {
		return err
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(EventOTPRequested)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
