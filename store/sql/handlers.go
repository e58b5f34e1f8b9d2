package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func providerInstanceHandlers() repository.ModelHandlers[*providerInstanceRecord] {
	return repository.ModelHandlers[*providerInstanceRecord]{
		NewRecord: func() *providerInstanceRecord {
			return &providerInstanceRecord{}
		},
		GetID: func(record *providerInstanceRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *providerInstanceRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *providerInstanceRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func credentialHandlers() repository.ModelHandlers[*credentialRecord] {
	return repository.ModelHandlers[*credentialRecord]{
		NewRecord: func() *credentialRecord {
			return &credentialRecord{}
		},
		GetID: func(record *credentialRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *credentialRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "provider_id"
		},
		GetIdentifierValue: func(record *credentialRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ProviderID)
		},
	}
}

func costRecordHandlers() repository.ModelHandlers[*costRecordRow] {
	return repository.ModelHandlers[*costRecordRow]{
		NewRecord: func() *costRecordRow {
			return &costRecordRow{}
		},
		GetID: func(record *costRecordRow) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *costRecordRow, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *costRecordRow) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func syncAttemptHandlers() repository.ModelHandlers[*syncAttemptRecord] {
	return repository.ModelHandlers[*syncAttemptRecord]{
		NewRecord: func() *syncAttemptRecord {
			return &syncAttemptRecord{}
		},
		GetID: func(record *syncAttemptRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *syncAttemptRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *syncAttemptRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func userProfileHandlers() repository.ModelHandlers[*userProfileRecord] {
	return repository.ModelHandlers[*userProfileRecord]{
		NewRecord: func() *userProfileRecord {
			return &userProfileRecord{}
		},
		GetID: func(record *userProfileRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *userProfileRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "auth_user_id"
		},
		GetIdentifierValue: func(record *userProfileRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.AuthUserID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
