package dynamo

// DynamoDB attribute names shared by key builders, conditions and bootstrap.
const (
	attrUserID    = "user_id"
	attrEmail     = "email"
	attrUsername  = "username"
	attrUpdatedAt = "updated_at"
	attrUniqueKey = "unique_key"
	attrStateKey  = "state_key"
	attrValue     = "value"
	attrExpiresAt = "expires_at"

	indexEmail    = "email-index"
	indexUsername = "username-index"
)
