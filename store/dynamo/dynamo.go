package dynamo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gofrs/uuid/v5"

	"github.com/LeoTokuo/canvas-project-online/models"
)

type DynamoCanvasStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoCanvasStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoCanvasStore, error) {
	client, err := newDynamoDBClient(context.Background(), devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	tables, err := getTables(client, ctx)
	if err != nil {
		return nil, err
	}

	foundTable := false
	for _, table := range tables {
		if table == tableName {
			foundTable = true
			break
		}
	}
	if !foundTable {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoCanvasStore{client: client, tableName: tableName}, nil
}

func (dynamoStore *DynamoCanvasStore) CreateSession(ctx context.Context, doc models.CanvasDocument) (models.Session, error) {
	sessionId, err := uuid.NewV4()
	if err != nil {
		return models.Session{}, err
	}

	docBytes, err := json.Marshal(doc)
	if err != nil {
		return models.Session{}, err
	}

	now := time.Now().Unix()
	session := models.Session{
		Id:         sessionId.String(),
		Created:    now,
		Updated:    now,
		ActivePage: 1,
		Data:       docBytes,
	}

	ds, _, err := ensureItem(dynamoStore, ctx, sessionToDynamo(session))
	if err != nil {
		return models.Session{}, err
	}

	// Page 1 is created eagerly so the first page switch always has an old
	// page row to save over.
	if err := dynamoStore.UpsertPage(ctx, session.Id, 1, doc); err != nil {
		return models.Session{}, err
	}

	return sessionFromDynamo(ds), nil
}

func (dynamoStore *DynamoCanvasStore) GetSession(ctx context.Context, sessionId string) (models.Session, error) {
	ds, err := getItem[dynamoSession](dynamoStore, ctx, "SESSION#"+sessionId, "META", false)
	if err != nil {
		return models.Session{}, err
	}

	return sessionFromDynamo(ds), nil
}

func (dynamoStore *DynamoCanvasStore) UpdateSession(ctx context.Context, sessionId string, data json.RawMessage) (models.Session, error) {
	ds := dynamoSession{
		PK:      "SESSION#" + sessionId,
		SK:      "META",
		Data:    string(data),
		Updated: time.Now().Unix(),
	}

	updated, err := updateItem(dynamoStore, ctx, ds, []string{"Data", "Updated"})
	if err != nil {
		return models.Session{}, err
	}

	return sessionFromDynamo(updated), nil
}

func (dynamoStore *DynamoCanvasStore) GetPage(ctx context.Context, sessionId string, number int) (models.Page, error) {
	dp, err := getItem[dynamoPage](dynamoStore, ctx, "SESSION#"+sessionId, pageSK(number), false)
	if err != nil {
		return models.Page{}, err
	}

	return pageFromDynamo(dp)
}

func (dynamoStore *DynamoCanvasStore) UpsertPage(ctx context.Context, sessionId string, number int, doc models.CanvasDocument) error {
	dp, err := pageToDynamo(models.Page{
		SessionId: sessionId,
		Number:    number,
		Document:  doc,
		Updated:   time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	return putItem(dynamoStore, ctx, dp)
}

func (dynamoStore *DynamoCanvasStore) GetActivePage(ctx context.Context, sessionId string) (int, error) {
	session, err := dynamoStore.GetSession(ctx, sessionId)
	if err != nil {
		return 0, err
	}

	// Sessions written before the page model have no pointer; treat as page 1.
	if session.ActivePage < 1 {
		return 1, nil
	}

	return session.ActivePage, nil
}

func (dynamoStore *DynamoCanvasStore) SetActivePage(ctx context.Context, sessionId string, number int) error {
	ds := dynamoSession{
		PK:         "SESSION#" + sessionId,
		SK:         "META",
		ActivePage: number,
		Updated:    time.Now().Unix(),
	}

	_, err := updateItem(dynamoStore, ctx, ds, []string{"ActivePage", "Updated"})
	return err
}

func (dynamoStore *DynamoCanvasStore) GetAccount(ctx context.Context, name string) (models.Account, error) {
	da, err := getItem[dynamoAccount](dynamoStore, ctx, "ACCOUNT#"+name, "PROFILE", false)
	if err != nil {
		return models.Account{}, err
	}

	return accountFromDynamo(da), nil
}
