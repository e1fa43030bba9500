// Package journal keeps a record of staging runs.
//
// A run is written to a DynamoDB table and announced on a SNS topic, either
// of them being optional.
package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ORIGYN-SA/mintgo/stage"
)

// Failure is a library that a run could not stage.
type Failure struct {
	TokenID   string `json:"tokenId" dynamodbav:"tokenId"`
	LibraryID string `json:"libraryId" dynamodbav:"libraryId"`
	Error     string `json:"error" dynamodbav:"error"`
}

// Run describes one staging run.
type Run struct {
	ID            string    `json:"runId" dynamodbav:"runId"`
	Command       string    `json:"command" dynamodbav:"command"`
	CanisterID    string    `json:"canisterId" dynamodbav:"canisterId"`
	CollectionID  string    `json:"collectionId" dynamodbav:"collectionId"`
	Tokens        []string  `json:"tokens" dynamodbav:"tokens"`
	TotalFileSize int64     `json:"totalFileSize" dynamodbav:"totalFileSize"`
	Failures      []Failure `json:"failures" dynamodbav:"failures"`
	Error         string    `json:"error,omitempty" dynamodbav:"error,omitempty"`
	StartedAt     time.Time `json:"startedAt" dynamodbav:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt" dynamodbav:"finishedAt"`
}

// NewRun starts the record of a run.
func NewRun(command, canisterID, collectionID string) *Run {
	return &Run{
		ID:           uuid.New().String(),
		Command:      command,
		CanisterID:   canisterID,
		CollectionID: collectionID,
		Tokens:       []string{},
		Failures:     []Failure{},
		StartedAt:    time.Now().UTC(),
	}
}

// Finish completes the record with the outcome of the run. Either argument
// may be nil.
func (r *Run) Finish(result *stage.StageResult, err error) {
	r.FinishedAt = time.Now().UTC()
	if err != nil {
		r.Error = err.Error()
	}
	if result == nil {
		return
	}
	r.Tokens = append(r.Tokens, result.Tokens...)
	r.TotalFileSize = result.TotalFileSize
	for _, f := range result.Failures() {
		r.Failures = append(r.Failures, Failure{
			TokenID:   f.TokenID,
			LibraryID: f.LibraryID,
			Error:     f.Err.Error(),
		})
	}
}

// Journal records runs.
type Journal interface {
	Record(ctx context.Context, run *Run) error
}

type nopJournal struct{}

// Nop returns a Journal that records nothing.
func Nop() Journal { return nopJournal{} }

func (nopJournal) Record(context.Context, *Run) error { return nil }

type multiJournal []Journal

// Multi records runs in every journal given, stopping at the first error.
func Multi(journals ...Journal) Journal {
	return multiJournal(journals)
}

func (m multiJournal) Record(ctx context.Context, run *Run) error {
	for _, j := range m {
		if err := j.Record(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

type dynamoDBJournal struct {
	DynamoDB dynamodbiface.DynamoDBAPI
	Table    string
}

var _ Journal = (*dynamoDBJournal)(nil)

func NewDynamoDB(client dynamodbiface.DynamoDBAPI, table string) *dynamoDBJournal {
	return &dynamoDBJournal{
		DynamoDB: client,
		Table:    table,
	}
}

func (j *dynamoDBJournal) Record(ctx context.Context, run *Run) error {
	item, err := dynamodbattribute.MarshalMap(run)
	if err != nil {
		return err
	}
	input := &dynamodb.PutItemInput{
		TableName: aws.String(j.Table),
		Item:      item,
	}
	_, err = j.DynamoDB.PutItemWithContext(ctx, input)
	return errors.Wrap(err, "cannot record run")
}

// List returns every run in the table.
func (j *dynamoDBJournal) List(ctx context.Context) ([]*Run, error) {
	runs := []*Run{}
	input := &dynamodb.ScanInput{
		ConsistentRead: aws.Bool(true),
		TableName:      aws.String(j.Table),
	}
	err := j.DynamoDB.ScanPagesWithContext(ctx, input, func(page *dynamodb.ScanOutput, last bool) bool {
		for _, item := range page.Items {
			run := &Run{}
			if err := dynamodbattribute.UnmarshalMap(item, run); err != nil {
				continue
			}
			runs = append(runs, run)
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot list runs")
	}
	return runs, nil
}

type snsJournal struct {
	SNS      snsiface.SNSAPI
	TopicARN string
}

var _ Journal = (*snsJournal)(nil)

func NewSNS(client snsiface.SNSAPI, topicARN string) *snsJournal {
	return &snsJournal{
		SNS:      client,
		TopicARN: topicARN,
	}
}

// Record publishes the run as a JSON document.
func (j *snsJournal) Record(ctx context.Context, run *Run) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return err
	}
	_, err = j.SNS.PublishWithContext(ctx, &sns.PublishInput{
		Message:  aws.String(string(payload)),
		TopicArn: aws.String(j.TopicARN),
	})
	return errors.Wrap(err, "cannot publish run")
}
