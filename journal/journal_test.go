package journal

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ORIGYN-SA/mintgo/canister"
	"github.com/ORIGYN-SA/mintgo/stage"
)

type dynamock struct {
	mock.Mock
	dynamodbiface.DynamoDBAPI
}

func (m *dynamock) PutItemWithContext(ctx aws.Context, input *dynamodb.PutItemInput, opts ...request.Option) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, input)
	return &dynamodb.PutItemOutput{}, args.Error(0)
}

func (m *dynamock) ScanPagesWithContext(ctx aws.Context, input *dynamodb.ScanInput, fn func(*dynamodb.ScanOutput, bool) bool, opts ...request.Option) error {
	args := m.Called(ctx, input)
	for i, page := range args.Get(0).([]*dynamodb.ScanOutput) {
		if !fn(page, i == len(args.Get(0).([]*dynamodb.ScanOutput))-1) {
			break
		}
	}
	return args.Error(1)
}

type snsmock struct {
	mock.Mock
	snsiface.SNSAPI
}

func (m *snsmock) PublishWithContext(ctx aws.Context, input *sns.PublishInput, opts ...request.Option) (*sns.PublishOutput, error) {
	args := m.Called(ctx, input)
	return &sns.PublishOutput{}, args.Error(0)
}

func finishedRun() *Run {
	run := NewRun("stage collection", "rrkah-fqaaa-aaaaa-aaaaq-cai", "bm")
	run.Finish(&stage.StageResult{
		Tokens: []string{"", "bm-0"},
		Response: map[string]*stage.UnitResult{
			"": {LibraryStage: []*stage.ChunkUploadResult{{LibraryID: "logo.png", Chunks: 1}}},
			"bm-0": {NFTStage: "bm-0", LibraryStage: []*stage.ChunkUploadResult{
				{LibraryID: "a.png", Chunks: 2, Err: &canister.Error{Text: canister.ErrTextMaxRetriesExceeded}},
			}},
		},
		TotalFileSize: 42,
	}, nil)
	return run
}

func TestRun_Finish(t *testing.T) {
	run := finishedRun()

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, []string{"", "bm-0"}, run.Tokens)
	assert.EqualValues(t, 42, run.TotalFileSize)
	require.Len(t, run.Failures, 1)
	assert.Equal(t, "bm-0", run.Failures[0].TokenID)
	assert.Equal(t, "a.png", run.Failures[0].LibraryID)
	assert.Contains(t, run.Failures[0].Error, canister.ErrTextMaxRetriesExceeded)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
	assert.Empty(t, run.Error)

	aborted := NewRun("stage nfts", "c", "bm")
	aborted.Finish(nil, errors.New("declined"))
	assert.Equal(t, "declined", aborted.Error)
	assert.Empty(t, aborted.Tokens)
}

func TestDynamoDB_Record(t *testing.T) {
	m := &dynamock{}
	run := finishedRun()
	m.On("PutItemWithContext", mock.Anything, mock.MatchedBy(func(input *dynamodb.PutItemInput) bool {
		decoded := &Run{}
		if err := dynamodbattribute.UnmarshalMap(input.Item, decoded); err != nil {
			return false
		}
		return *input.TableName == "runs" &&
			decoded.ID == run.ID &&
			decoded.CollectionID == "bm" &&
			len(decoded.Failures) == 1
	})).Return(nil).Once()

	j := NewDynamoDB(m, "runs")
	require.NoError(t, j.Record(context.Background(), run))
	m.AssertExpectations(t)
}

func TestDynamoDB_RecordError(t *testing.T) {
	m := &dynamock{}
	m.On("PutItemWithContext", mock.Anything, mock.Anything).Return(errors.New("throttled"))

	err := NewDynamoDB(m, "runs").Record(context.Background(), finishedRun())
	assert.EqualError(t, err, "cannot record run: throttled")
}

func TestDynamoDB_List(t *testing.T) {
	first, second := finishedRun(), finishedRun()
	item1, err := dynamodbattribute.MarshalMap(first)
	require.NoError(t, err)
	item2, err := dynamodbattribute.MarshalMap(second)
	require.NoError(t, err)

	m := &dynamock{}
	m.On("ScanPagesWithContext", mock.Anything, &dynamodb.ScanInput{
		ConsistentRead: aws.Bool(true),
		TableName:      aws.String("runs"),
	}).Return([]*dynamodb.ScanOutput{
		{Items: []map[string]*dynamodb.AttributeValue{item1}},
		{Items: []map[string]*dynamodb.AttributeValue{item2}},
	}, nil)

	runs, err := NewDynamoDB(m, "runs").List(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first.ID, runs[0].ID)
	assert.Equal(t, second.ID, runs[1].ID)
	assert.Equal(t, []string{"", "bm-0"}, runs[1].Tokens)
}

func TestSNS_Record(t *testing.T) {
	m := &snsmock{}
	run := finishedRun()
	m.On("PublishWithContext", mock.Anything, mock.MatchedBy(func(input *sns.PublishInput) bool {
		decoded := &Run{}
		if err := json.Unmarshal([]byte(*input.Message), decoded); err != nil {
			return false
		}
		return *input.TopicArn == "arn:aws:sns:eu-west-2:123:runs" && decoded.ID == run.ID
	})).Return(nil).Once()

	j := NewSNS(m, "arn:aws:sns:eu-west-2:123:runs")
	require.NoError(t, j.Record(context.Background(), run))
	m.AssertExpectations(t)
}

func TestMulti(t *testing.T) {
	d := &dynamock{}
	d.On("PutItemWithContext", mock.Anything, mock.Anything).Return(errors.New("down"))
	s := &snsmock{}

	err := Multi(Nop(), NewDynamoDB(d, "runs"), NewSNS(s, "arn")).Record(context.Background(), finishedRun())
	assert.Error(t, err)
	s.AssertNotCalled(t, "PublishWithContext", mock.Anything, mock.Anything)

	assert.NoError(t, Multi().Record(context.Background(), finishedRun()))
}
