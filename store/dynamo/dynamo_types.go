package dynamo

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/LeoTokuo/canvas-project-online/models"
)

type dynamoSession struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	Id         string `dynamodbav:"Id"`
	Created    int64  `dynamodbav:"Created"`
	Updated    int64  `dynamodbav:"Updated"`
	ActivePage int    `dynamodbav:"ActivePage"`
	Data       string `dynamodbav:"Data"`
}

// Map domain Session -> Dynamo
func sessionToDynamo(s models.Session) dynamoSession {
	return dynamoSession{
		PK:         "SESSION#" + s.Id,
		SK:         "META",
		Id:         s.Id,
		Created:    s.Created,
		Updated:    s.Updated,
		ActivePage: s.ActivePage,
		Data:       string(s.Data),
	}
}

// Map Dynamo -> domain Session
func sessionFromDynamo(ds dynamoSession) models.Session {
	s := models.Session{
		Id:         ds.Id,
		Created:    ds.Created,
		Updated:    ds.Updated,
		ActivePage: ds.ActivePage,
	}
	if ds.Data != "" {
		s.Data = json.RawMessage(ds.Data)
	}
	return s
}

type dynamoPage struct {
	PK       string `dynamodbav:"PK"`
	SK       string `dynamodbav:"SK"`
	Document string `dynamodbav:"Document"`
	Updated  int64  `dynamodbav:"Updated"`
}

func pageSK(number int) string {
	return "PAGE#" + strconv.Itoa(number)
}

// Map domain Page -> Dynamo. The document is stored as a JSON string so the
// store never needs to understand object attributes.
func pageToDynamo(p models.Page) (dynamoPage, error) {
	docBytes, err := json.Marshal(p.Document)
	if err != nil {
		return dynamoPage{}, err
	}
	return dynamoPage{
		PK:       "SESSION#" + p.SessionId,
		SK:       pageSK(p.Number),
		Document: string(docBytes),
		Updated:  p.Updated,
	}, nil
}

// Map Dynamo -> domain Page
func pageFromDynamo(dp dynamoPage) (models.Page, error) {
	var doc models.CanvasDocument
	if dp.Document != "" {
		if err := json.Unmarshal([]byte(dp.Document), &doc); err != nil {
			return models.Page{}, err
		}
	}

	// An unset background marshals as the null literal; fold it back to nil
	// so a stored document compares equal to the one that was saved.
	if string(doc.Background) == "null" {
		doc.Background = nil
	}

	number, _ := strconv.Atoi(strings.TrimPrefix(dp.SK, "PAGE#"))

	return models.Page{
		SessionId: strings.TrimPrefix(dp.PK, "SESSION#"),
		Number:    number,
		Document:  doc,
		Updated:   dp.Updated,
	}, nil
}

type dynamoAccount struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	Id         string `dynamodbav:"Id"`
	Name       string `dynamodbav:"Name"`
	Password   string `dynamodbav:"Password"`
	Permission int    `dynamodbav:"Permission"`
	Created    int64  `dynamodbav:"Created"`
}

// Map Dynamo -> domain Account
func accountFromDynamo(da dynamoAccount) models.Account {
	return models.Account{
		Id:         da.Id,
		Name:       da.Name,
		Password:   da.Password,
		Permission: da.Permission,
		Created:    da.Created,
	}
}
