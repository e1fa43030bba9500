package app

import (
	"net/http"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/ORIGYN-SA/mintgo/canister"
	"github.com/ORIGYN-SA/mintgo/identity"
	"github.com/ORIGYN-SA/mintgo/journal"
	"github.com/ORIGYN-SA/mintgo/s3"
	"github.com/ORIGYN-SA/mintgo/stage"
	"github.com/ORIGYN-SA/mintgo/version"
)

// fs is where stage configurations and local stage files are read from.
var fs = afero.NewOsFs()

// canisterClient returns a client for canisterID, or for the configured
// canister when empty.
func canisterClient(logger logrus.FieldLogger, config *Config, canisterID string) (*canister.Client, error) {
	if canisterID == "" {
		canisterID = config.Canister.ID
	}
	if canisterID == "" {
		return nil, errors.New("canister id is not configured (canister.id)")
	}
	id, err := identity.FromText(config.Canister.Principal)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: config.Canister.Timeout}
	return canister.New(httpClient, config.Host(), canisterID,
		canister.WithLogger(logger),
		canister.WithIdentity(id),
		canister.WithUserAgent(version.AppVersion()),
	)
}

// objectStorage returns the S3 client used for s3:// stage files.
func objectStorage(logger logrus.FieldLogger, config *Config) (stage.ObjectFetcher, error) {
	sess, err := awsSession(logger, config.AWS.S3Profile, config.AWS.S3Endpoint)
	if err != nil {
		return nil, err
	}
	return s3.New(sess), nil
}

// runJournal returns the journals enabled in the configuration.
func runJournal(logger logrus.FieldLogger, config *Config) (journal.Journal, error) {
	var journals []journal.Journal
	if config.Journal.Table != "" {
		sess, err := awsSession(logger, config.AWS.DynamoDBProfile, config.AWS.DynamoDBEndpoint)
		if err != nil {
			return nil, err
		}
		journals = append(journals, journal.NewDynamoDB(dynamodb.New(sess), config.Journal.Table))
	}
	if config.Journal.Topic != "" {
		sess, err := awsSession(logger, config.AWS.SNSProfile, config.AWS.SNSEndpoint)
		if err != nil {
			return nil, err
		}
		journals = append(journals, journal.NewSNS(sns.New(sess), config.Journal.Topic))
	}
	if len(journals) == 0 {
		return journal.Nop(), nil
	}
	return journal.Multi(journals...), nil
}

type logrusProxy struct {
	logger logrus.FieldLogger
}

func (l logrusProxy) Log(args ...interface{}) {
	l.logger.WithField("client", "aws").Debug(args...)
}

// awsSession returns a session using NewSessionWithOptions meaning that it
// relies on the SDK defaults but also the user config files and environment.
//
// AWS_S3_FORCE_PATH_STYLE is a made-up environment string that the SDK does
// not look up, handy with S3-compatible stores such as MinIO.
func awsSession(logger logrus.FieldLogger, profile, endpoint string) (*session.Session, error) {
	options := session.Options{}
	if profile != "" {
		options.Profile = profile
	}
	if endpoint != "" {
		options.Config.WithEndpoint(endpoint)
	}
	if res, ok := os.LookupEnv("AWS_S3_FORCE_PATH_STYLE"); ok {
		enabled, _ := strconv.ParseBool(res)
		options.Config.WithS3ForcePathStyle(enabled)
	}
	if logrus.GetLevel() == logrus.DebugLevel {
		options.Config.WithCredentialsChainVerboseErrors(true)
	}
	options.Config.WithLogger(logrusProxy{logger: logger})
	return session.NewSessionWithOptions(options)
}
