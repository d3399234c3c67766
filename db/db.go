package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jsphweid/harmonia/composition"
	"github.com/jsphweid/harmonia/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

// maxBatchGet is DynamoDB's BatchGetItem key limit.
const maxBatchGet = 100

var ErrTooManyKeys = errors.New("db: too many keys in one batch")

// Record is the archived summary of a finished composition.
type Record struct {
	PK          string         `dynamodbav:"PK" json:"id"`
	Strategy    string         `dynamodbav:"Strategy" json:"strategy"`
	Started     string         `dynamodbav:"Started" json:"started"`
	Finished    string         `dynamodbav:"Finished" json:"finished"`
	Measures    int            `dynamodbav:"Measures" json:"measures"`
	Played      int            `dynamodbav:"Played" json:"played"`
	Sections    int            `dynamodbav:"Sections" json:"sections"`
	Modulations int            `dynamodbav:"Modulations" json:"modulations"`
	Keys        []string       `dynamodbav:"Keys" json:"keys"`
	Chords      map[string]int `dynamodbav:"Chords" json:"chords"`
}

func NewRecord(c composition.Composition) Record {
	r := Record{
		PK:          c.ID,
		Strategy:    c.Strategy,
		Started:     c.Started.UTC().Format(time.RFC3339),
		Finished:    c.Finished.UTC().Format(time.RFC3339),
		Measures:    len(c.Measures),
		Played:      c.Played,
		Sections:    len(c.Sections),
		Modulations: c.Modulations(),
		Chords:      c.ChordCounts(),
	}
	seen := make(map[string]bool)
	for _, s := range c.Sections {
		for _, keys := range s.Keys {
			for _, k := range keys {
				if !seen[k] {
					seen[k] = true
					r.Keys = append(r.Keys, k)
				}
			}
		}
	}
	return r
}

type Archive struct {
	client dynamodbiface.DynamoDBAPI
	table  string
}

func New(cfg *config.Config) (*Archive, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.DynamoRegion)}
	if cfg.DynamoEndpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.DynamoEndpoint)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("could not create a new DynamoDB session: %w", err)
	}
	return NewWithClient(dynamodb.New(sess), cfg.DynamoTable), nil
}

func NewWithClient(client dynamodbiface.DynamoDBAPI, table string) *Archive {
	return &Archive{client: client, table: table}
}

func (a *Archive) Put(ctx context.Context, c composition.Composition) error {
	item, err := dynamodbattribute.MarshalMap(NewRecord(c))
	if err != nil {
		return err
	}
	_, err = a.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(a.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("error from DynamoDB: %w", err)
	}
	return nil
}

// Get fetches archived records by composition id. Ids that were never
// archived are simply absent from the result.
func (a *Archive) Get(ctx context.Context, ids []string) (map[string]Record, error) {
	if len(ids) > maxBatchGet {
		return nil, fmt.Errorf("%w: %d", ErrTooManyKeys, len(ids))
	}

	res := make(map[string]Record)
	if len(ids) == 0 {
		return res, nil
	}

	var keys []map[string]*dynamodb.AttributeValue
	for _, id := range ids {
		keys = append(keys, map[string]*dynamodb.AttributeValue{
			"PK": {S: aws.String(id)},
		})
	}
	out, err := a.client.BatchGetItemWithContext(ctx, &dynamodb.BatchGetItemInput{
		RequestItems: map[string]*dynamodb.KeysAndAttributes{
			a.table: {Keys: keys},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error from DynamoDB: %w", err)
	}

	var records []Record
	if err := dynamodbattribute.UnmarshalListOfMaps(out.Responses[a.table], &records); err != nil {
		return nil, err
	}
	for _, r := range records {
		res[r.PK] = r
	}
	return res, nil
}
