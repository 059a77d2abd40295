package mysql

const connectionColumns = `
  id, business_id, platform, external_id, access_token, refresh_token,
  token_expires_at, sync_status, last_synced_at, total_reviews, average_rating`

const getConnectionSQL = `SELECT` + connectionColumns + `
FROM platform_connections
WHERE id = ?`

const upsertConnectionSQL = `
INSERT INTO platform_connections
  (id, business_id, platform, external_id, access_token, refresh_token, token_expires_at, sync_status)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  external_id      = VALUES(external_id),
  access_token     = VALUES(access_token),
  refresh_token    = VALUES(refresh_token),
  token_expires_at = VALUES(token_expires_at),
  sync_status      = VALUES(sync_status)
`

const getConnectionByKeySQL = `SELECT` + connectionColumns + `
FROM platform_connections
WHERE business_id = ? AND platform = ?`

const updateTokensSQL = `
UPDATE platform_connections
SET access_token = ?, token_expires_at = ?, sync_status = 'active'
WHERE id = ?`

const updateStatusSQL = `UPDATE platform_connections SET sync_status = ? WHERE id = ?`

const completeSyncSQL = `
UPDATE platform_connections
SET total_reviews = ?, average_rating = ?, sync_status = ?, last_synced_at = ?
WHERE id = ?`

// Note: a provider reply overwrites the response fields; without one the
// local response state (including 'ignored') is kept.
const upsertReviewSQL = `
INSERT INTO reviews
  (id, business_id, platform, connection_id, external_id, author_name, author_avatar_url,
   rating, content, published_at, external_url, response_status, response_text, responded_at,
   processing_status)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'unprocessed')
ON DUPLICATE KEY UPDATE
  connection_id     = VALUES(connection_id),
  author_name       = VALUES(author_name),
  author_avatar_url = VALUES(author_avatar_url),
  rating            = VALUES(rating),
  content           = VALUES(content),
  published_at      = VALUES(published_at),
  external_url      = VALUES(external_url),
  response_text     = IF(VALUES(response_status) = 'responded', VALUES(response_text), reviews.response_text),
  responded_at      = IF(VALUES(response_status) = 'responded', VALUES(responded_at), reviews.responded_at),
  response_status   = IF(VALUES(response_status) = 'responded', 'responded', reviews.response_status)
`

const reviewColumns = `
  id, business_id, platform, connection_id, external_id, author_name, author_avatar_url,
  rating, content, published_at, external_url, response_status, response_text, responded_at,
  processing_status, sentiment, urgency_score, topics, suggested_reply`

const getReviewByKeySQL = `SELECT` + reviewColumns + `
FROM reviews
WHERE business_id = ? AND platform = ? AND external_id = ?`

const getReviewSQL = `SELECT` + reviewColumns + `
FROM reviews
WHERE id = ?`

const saveAnalysisSQL = `
UPDATE reviews
SET sentiment = ?, urgency_score = ?, topics = ?, suggested_reply = ?, processing_status = 'processed'
WHERE id = ?`

const markAnalysisFailedSQL = `
UPDATE reviews
SET processing_status = 'failed'
WHERE id = ? AND processing_status <> 'processed'`

const markRespondedSQL = `
UPDATE reviews
SET response_status = 'responded', response_text = ?, responded_at = ?
WHERE id = ?`

const aggregateRatingsSQL = `
SELECT COUNT(*), COALESCE(AVG(rating), 0)
FROM reviews
WHERE business_id = ? AND platform = ?`
