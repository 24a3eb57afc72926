package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"trip-planner/internal/domain"
)

const (
	skRecord    = "RECORD"
	skPrefixMsg = "MSG#"

	// maxTransactItems is the DynamoDB limit on actions per TransactWriteItems call.
	maxTransactItems = 100
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoStore keeps a session in a PK/SK table as one RECORD item (latest
// preferences, itinerary and history length) plus one MSG#<n> item per
// history entry, so no single item grows with the session.
//
// Every item carries a ttl attribute for the table's TTL setting. Expired
// items that have not been reaped yet are reported as missing; history
// entries older than the session TTL may be reaped while the session lives.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

func NewDynamoStore(api dynamodbAPI, tableName string, ttl time.Duration) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("session: dynamodb api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("session: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName, ttl: ttlOrDefault(ttl), now: time.Now}, nil
}

func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// msgSK zero-pads the index so sort keys order the history chronologically.
func msgSK(index int) string {
	return fmt.Sprintf("%s%06d", skPrefixMsg, index)
}

func recordKey(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK": &types.AttributeValueMemberS{Value: skRecord},
	}
}

func (s *DynamoStore) expired(item map[string]types.AttributeValue) bool {
	ttl, err := intAttr(item, "ttl")
	return err == nil && int64(ttl) <= s.now().Unix()
}

func (s *DynamoStore) Load(ctx context.Context, sessionID string) (domain.TripPreferenceRecord, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            recordKey(sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.TripPreferenceRecord{}, false, fmt.Errorf("session: Load get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 || s.expired(out.Item) {
		return domain.TripPreferenceRecord{}, false, nil
	}

	rec, count, err := itemToRecord(out.Item)
	if err != nil {
		return domain.TripPreferenceRecord{}, false, fmt.Errorf("session: Load decode: %w", err)
	}
	if count > 0 {
		history, err := s.loadHistory(ctx, sessionID, count)
		if err != nil {
			return domain.TripPreferenceRecord{}, false, err
		}
		rec.MessageHistory = history
	}
	return rec, true, nil
}

// loadHistory pages through the MSG# items of a session. Items at or past
// count belong to a save that did not complete and are skipped.
func (s *DynamoStore) loadHistory(ctx context.Context, sessionID string, count int) ([]domain.ChatMessage, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}

	msgs := make([]domain.ChatMessage, 0, count)
	for {
		out, err := s.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("session: Load query history: %w", err)
		}
		for _, item := range out.Items {
			idx, msg, err := itemToMessage(item)
			if err != nil {
				return nil, fmt.Errorf("session: Load decode history: %w", err)
			}
			if idx >= count || s.expired(item) {
				continue
			}
			msgs = append(msgs, msg)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return msgs, nil
}

// Save writes the history entries added since the stored record, then the
// record itself. The record's historyCount moves last, so a reader never
// sees a count ahead of the stored entries.
func (s *DynamoStore) Save(ctx context.Context, rec domain.TripPreferenceRecord) error {
	if strings.TrimSpace(rec.SessionID) == "" {
		return errors.New("session: Save: session id is required")
	}

	stored, err := s.storedHistoryCount(ctx, rec.SessionID)
	if err != nil {
		return err
	}
	start := stored
	if start > len(rec.MessageHistory) {
		start = 0
	}

	expires := s.now().Add(s.ttl).Unix()
	puts := make([]types.TransactWriteItem, 0, len(rec.MessageHistory)-start+1)
	for i := start; i < len(rec.MessageHistory); i++ {
		puts = append(puts, s.put(messageItem(rec.SessionID, i, rec.MessageHistory[i], expires)))
	}

	for len(puts) >= maxTransactItems {
		if err := s.transact(ctx, puts[:maxTransactItems]); err != nil {
			return err
		}
		puts = puts[maxTransactItems:]
	}
	return s.transact(ctx, append(puts, s.put(recordItem(rec, expires))))
}

func (s *DynamoStore) storedHistoryCount(ctx context.Context, sessionID string) (int, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(s.tableName),
		Key:                  recordKey(sessionID),
		ConsistentRead:       aws.Bool(true),
		ProjectionExpression: aws.String("historyCount"),
	})
	if err != nil {
		return 0, fmt.Errorf("session: Save get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return 0, nil
	}
	if _, ok := out.Item["historyCount"]; !ok {
		return 0, nil
	}
	n, err := intAttr(out.Item, "historyCount")
	if err != nil {
		return 0, fmt.Errorf("session: Save decode historyCount: %w", err)
	}
	return n, nil
}

func (s *DynamoStore) put(item map[string]types.AttributeValue) types.TransactWriteItem {
	return types.TransactWriteItem{Put: &types.Put{TableName: aws.String(s.tableName), Item: item}}
}

func (s *DynamoStore) transact(ctx context.Context, items []types.TransactWriteItem) error {
	_, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		return fmt.Errorf("session: Save: %w", err)
	}
	return nil
}

func recordItem(rec domain.TripPreferenceRecord, expires int64) map[string]types.AttributeValue {
	item := recordKey(rec.SessionID)
	for k, v := range prefsAttrs(rec.TripPreferences) {
		item[k] = v
	}
	item["sessionId"] = &types.AttributeValueMemberS{Value: rec.SessionID}
	item["formInput"] = &types.AttributeValueMemberM{Value: prefsAttrs(rec.FormInput)}
	item["itinerary"] = &types.AttributeValueMemberS{Value: rec.Itinerary}
	item["historyCount"] = &types.AttributeValueMemberN{Value: strconv.Itoa(len(rec.MessageHistory))}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: rec.UpdatedAt.UTC().Format(time.RFC3339Nano)}
	item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expires, 10)}
	return item
}

func messageItem(sessionID string, index int, msg domain.ChatMessage, expires int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK":        &types.AttributeValueMemberS{Value: msgSK(index)},
		"sessionId": &types.AttributeValueMemberS{Value: sessionID},
		"role":      &types.AttributeValueMemberS{Value: msg.Role},
		"content":   &types.AttributeValueMemberS{Value: msg.Content},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(expires, 10)},
	}
}

func prefsAttrs(p domain.TripPreferences) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"city":                     &types.AttributeValueMemberS{Value: p.City},
		"budget":                   &types.AttributeValueMemberS{Value: p.Budget},
		"currency":                 &types.AttributeValueMemberS{Value: p.Currency},
		"duration":                 &types.AttributeValueMemberN{Value: strconv.Itoa(p.Duration)},
		"purpose":                  &types.AttributeValueMemberS{Value: p.Purpose},
		"preferences":              &types.AttributeValueMemberS{Value: p.Preferences},
		"dietaryPreferences":       &types.AttributeValueMemberS{Value: p.DietaryPreferences},
		"specificInterests":        &types.AttributeValueMemberS{Value: p.SpecificInterests},
		"mobilityConcerns":         &types.AttributeValueMemberS{Value: p.MobilityConcerns},
		"accommodationPreferences": &types.AttributeValueMemberS{Value: p.AccommodationPreferences},
		"additionalInput":          &types.AttributeValueMemberS{Value: p.AdditionalInput},
	}
}

// prefsFromAttrs tolerates missing attributes so items written by older
// builds still load. A present but malformed duration is an error.
func prefsFromAttrs(item map[string]types.AttributeValue) (domain.TripPreferences, error) {
	opt := func(key string) string {
		v, _ := strAttr(item, key)
		return v
	}
	p := domain.TripPreferences{
		City:                     opt("city"),
		Budget:                   opt("budget"),
		Currency:                 opt("currency"),
		Purpose:                  opt("purpose"),
		Preferences:              opt("preferences"),
		DietaryPreferences:       opt("dietaryPreferences"),
		SpecificInterests:        opt("specificInterests"),
		MobilityConcerns:         opt("mobilityConcerns"),
		AccommodationPreferences: opt("accommodationPreferences"),
		AdditionalInput:          opt("additionalInput"),
	}
	if _, ok := item["duration"]; ok {
		d, err := intAttr(item, "duration")
		if err != nil {
			return domain.TripPreferences{}, err
		}
		p.Duration = d
	}
	return p, nil
}

func itemToRecord(item map[string]types.AttributeValue) (domain.TripPreferenceRecord, int, error) {
	sessionID, err := strAttr(item, "sessionId")
	if err != nil {
		return domain.TripPreferenceRecord{}, 0, err
	}
	prefs, err := prefsFromAttrs(item)
	if err != nil {
		return domain.TripPreferenceRecord{}, 0, err
	}

	rec := domain.TripPreferenceRecord{SessionID: sessionID, TripPreferences: prefs}
	rec.Itinerary, _ = strAttr(item, "itinerary")

	if v, ok := item["formInput"]; ok {
		m, ok := v.(*types.AttributeValueMemberM)
		if !ok {
			return domain.TripPreferenceRecord{}, 0, fmt.Errorf("session: attribute %q is not a map", "formInput")
		}
		if rec.FormInput, err = prefsFromAttrs(m.Value); err != nil {
			return domain.TripPreferenceRecord{}, 0, err
		}
	}

	if ts, _ := strAttr(item, "updatedAt"); ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return domain.TripPreferenceRecord{}, 0, fmt.Errorf("session: parse attribute %q: %w", "updatedAt", err)
		}
		rec.UpdatedAt = parsed
	}

	count := 0
	if _, ok := item["historyCount"]; ok {
		if count, err = intAttr(item, "historyCount"); err != nil {
			return domain.TripPreferenceRecord{}, 0, err
		}
	}
	return rec, count, nil
}

func itemToMessage(item map[string]types.AttributeValue) (int, domain.ChatMessage, error) {
	sk, err := strAttr(item, "SK")
	if err != nil {
		return 0, domain.ChatMessage{}, err
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(sk, skPrefixMsg))
	if err != nil {
		return 0, domain.ChatMessage{}, fmt.Errorf("session: parse sort key %q: %w", sk, err)
	}
	role, err := strAttr(item, "role")
	if err != nil {
		return 0, domain.ChatMessage{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return 0, domain.ChatMessage{}, err
	}
	return idx, domain.ChatMessage{Role: role, Content: content}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("session: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("session: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("session: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("session: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("session: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
