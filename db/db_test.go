package db

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/jsphweid/harmonia/composition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items in memory keyed by PK.
type fakeDynamo struct {
	dynamodbiface.DynamoDBAPI
	items map[string]map[string]*dynamodb.AttributeValue
	table string
}

func (f *fakeDynamo) PutItemWithContext(_ aws.Context, in *dynamodb.PutItemInput, _ ...request.Option) (*dynamodb.PutItemOutput, error) {
	f.table = *in.TableName
	f.items[*in.Item["PK"].S] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) BatchGetItemWithContext(_ aws.Context, in *dynamodb.BatchGetItemInput, _ ...request.Option) (*dynamodb.BatchGetItemOutput, error) {
	out := &dynamodb.BatchGetItemOutput{Responses: map[string][]map[string]*dynamodb.AttributeValue{}}
	for table, ka := range in.RequestItems {
		for _, k := range ka.Keys {
			if item, ok := f.items[*k["PK"].S]; ok {
				out.Responses[table] = append(out.Responses[table], item)
			}
		}
	}
	return out, nil
}

func snapshot() composition.Composition {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return composition.Composition{
		ID:       "abc",
		Strategy: "modulating",
		Started:  started,
		Finished: started.Add(time.Minute),
		Played:   2,
		Sections: []composition.SectionSummary{
			{Start: 2, Size: 2, Chords: []string{"F", "G7"}, Keys: [][]string{{"C major"}, {"C major"}}},
			{Start: 4, Size: 2, Chords: []string{"Am", "D7"}, Keys: [][]string{{"C major", "G major"}, {"G major"}}},
		},
	}
}

func TestNewRecord(t *testing.T) {
	assert := assert.New(t)
	r := NewRecord(snapshot())
	assert.Equal("abc", r.PK)
	assert.Equal("2024-03-01T12:00:00Z", r.Started)
	assert.Equal(2, r.Sections)
	assert.Equal(1, r.Modulations)
	assert.Equal([]string{"C major", "G major"}, r.Keys)
	assert.Equal(map[string]int{"F": 1, "G7": 1, "Am": 1, "D7": 1}, r.Chords)
}

func TestPutAndGet(t *testing.T) {
	assert := assert.New(t)
	fake := &fakeDynamo{items: map[string]map[string]*dynamodb.AttributeValue{}}
	a := NewWithClient(fake, "harmonia-test")

	require.NoError(t, a.Put(context.Background(), snapshot()))
	assert.Equal("harmonia-test", fake.table)
	assert.Equal("modulating", *fake.items["abc"]["Strategy"].S)

	got, err := a.Get(context.Background(), []string{"abc", "missing"})
	require.NoError(t, err)
	assert.Len(got, 1)
	assert.Equal(NewRecord(snapshot()), got["abc"])
}

func TestGetLimits(t *testing.T) {
	a := NewWithClient(&fakeDynamo{}, "t")
	got, err := a.Get(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, got)

	_, err = a.Get(context.Background(), make([]string, 101))
	assert.ErrorIs(t, err, ErrTooManyKeys)
}
