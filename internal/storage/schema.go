package storage

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS financial_companies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	app_id TEXT NOT NULL UNIQUE,
	category TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS departments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	description TEXT,
	keywords TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS reviews (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id INTEGER NOT NULL REFERENCES financial_companies(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	rating INTEGER CHECK (rating BETWEEN 1 AND 5),
	review_date TIMESTAMP,
	platform TEXT NOT NULL,
	sentiment TEXT,
	sentiment_score REAL CHECK (sentiment_score BETWEEN -1.0 AND 1.0),
	department_assigned TEXT,
	processed BOOLEAN NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviews_company_id ON reviews(company_id);
CREATE INDEX IF NOT EXISTS idx_reviews_sentiment ON reviews(sentiment);
CREATE INDEX IF NOT EXISTS idx_reviews_department ON reviews(department_assigned);
CREATE INDEX IF NOT EXISTS idx_reviews_created_at ON reviews(created_at);

CREATE TABLE IF NOT EXISTS agent_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	review_id INTEGER REFERENCES reviews(id) ON DELETE CASCADE,
	agent_name TEXT NOT NULL,
	action TEXT NOT NULL,
	result TEXT,
	duration_ms INTEGER,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_agent_logs_review_id ON agent_logs(review_id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS financial_companies (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(100) NOT NULL,
	app_id VARCHAR(100) NOT NULL UNIQUE,
	category VARCHAR(50),
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS departments (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(100) NOT NULL UNIQUE,
	description TEXT,
	keywords TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS reviews (
	id BIGSERIAL PRIMARY KEY,
	company_id BIGINT NOT NULL REFERENCES financial_companies(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	rating SMALLINT CHECK (rating BETWEEN 1 AND 5),
	review_date TIMESTAMPTZ,
	platform VARCHAR(20) NOT NULL,
	sentiment VARCHAR(10),
	sentiment_score DOUBLE PRECISION CHECK (sentiment_score BETWEEN -1.0 AND 1.0),
	department_assigned VARCHAR(100),
	processed BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviews_company_id ON reviews(company_id);
CREATE INDEX IF NOT EXISTS idx_reviews_sentiment ON reviews(sentiment);
CREATE INDEX IF NOT EXISTS idx_reviews_department ON reviews(department_assigned);
CREATE INDEX IF NOT EXISTS idx_reviews_created_at ON reviews(created_at);

CREATE TABLE IF NOT EXISTS agent_logs (
	id BIGSERIAL PRIMARY KEY,
	review_id BIGINT REFERENCES reviews(id) ON DELETE CASCADE,
	agent_name VARCHAR(100) NOT NULL,
	action VARCHAR(100) NOT NULL,
	result TEXT,
	duration_ms BIGINT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_agent_logs_review_id ON agent_logs(review_id);
`
