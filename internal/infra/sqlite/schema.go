package sqlite

// schema is applied on every start; all statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    total_points INTEGER NOT NULL DEFAULT 0,
    reported_total_points INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS category_progress (
    user_id TEXT NOT NULL,
    category TEXT NOT NULL,
    level INTEGER NOT NULL,
    points INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
    PRIMARY KEY (user_id, category, level),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS guessed_names (
    user_id TEXT NOT NULL,
    category TEXT NOT NULL,
    level INTEGER NOT NULL,
    name TEXT NOT NULL,
    PRIMARY KEY (user_id, category, level, name),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_users_total_points ON users(total_points);
`
