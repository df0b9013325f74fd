package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CONTENT AND ATTEMPTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: questions, options, and answer attempts
-- Version: 001

CREATE TABLE IF NOT EXISTS questions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    lesson_id UUID NOT NULL,
    question_type VARCHAR(20) NOT NULL,
    prompt TEXT NOT NULL DEFAULT '',
    correct_answer JSONB,
    grading JSONB NOT NULL DEFAULT '{}'::jsonb,
    points INTEGER NOT NULL DEFAULT 1,
    is_required BOOLEAN NOT NULL DEFAULT TRUE,
    order_index INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_question_type CHECK (question_type IN ('single_choice', 'mcq', 'numeric', 'boolean', 'multi_select')),
    CONSTRAINT valid_points CHECK (points >= 0)
);

CREATE INDEX IF NOT EXISTS idx_questions_lesson ON questions(lesson_id, order_index);
CREATE INDEX IF NOT EXISTS idx_questions_lesson_required ON questions(lesson_id) WHERE is_required;

CREATE TABLE IF NOT EXISTS question_options (
    id VARCHAR(64) NOT NULL,
    question_id UUID NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
    option_text TEXT NOT NULL DEFAULT '',
    is_correct BOOLEAN NOT NULL DEFAULT FALSE,
    order_index INTEGER NOT NULL DEFAULT 0,

    PRIMARY KEY (question_id, id)
);

-- Append-only attempt history. lesson_id is denormalized from questions so
-- the completion check never joins.
CREATE TABLE IF NOT EXISTS answer_attempts (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL,
    question_id UUID NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
    lesson_id UUID NOT NULL,
    ordinal INTEGER NOT NULL,
    submitted JSONB,
    is_correct BOOLEAN NOT NULL,
    verdict VARCHAR(20) NOT NULL DEFAULT 'incorrect',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_ordinal CHECK (ordinal >= 1),
    CONSTRAINT valid_verdict CHECK (verdict IN ('correct', 'incorrect', 'partial', 'ungradeable'))
);

CREATE INDEX IF NOT EXISTS idx_attempts_user_question ON answer_attempts(user_id, question_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_attempts_user_lesson_correct ON answer_attempts(user_id, lesson_id) WHERE is_correct;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: REWARDS, STREAKS, PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: XP ledger, reward profiles, levels, streaks, lesson progress
-- Version: 002

-- Append-only XP ledger: the source of truth for every balance.
CREATE TABLE IF NOT EXISTS xp_transactions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL,
    amount INTEGER NOT NULL,
    reason VARCHAR(30) NOT NULL,
    reference_id VARCHAR(64),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT positive_amount CHECK (amount > 0),
    CONSTRAINT valid_reason CHECK (reason IN ('correct_answer', 'lesson_complete', 'streak', 'badge_earned'))
);

CREATE INDEX IF NOT EXISTS idx_xp_transactions_user ON xp_transactions(user_id, created_at DESC);

-- Cached ledger sums. Rebuildable at any time from xp_transactions.
CREATE TABLE IF NOT EXISTS user_reward_profiles (
    user_id UUID PRIMARY KEY,
    total_xp INTEGER NOT NULL DEFAULT 0,
    current_level INTEGER NOT NULL DEFAULT 1,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT non_negative_xp CHECK (total_xp >= 0),
    CONSTRAINT valid_level CHECK (current_level >= 1)
);

CREATE TABLE IF NOT EXISTS levels (
    level_number INTEGER PRIMARY KEY,
    xp_required INTEGER NOT NULL UNIQUE,
    title VARCHAR(50) NOT NULL,

    CONSTRAINT non_negative_threshold CHECK (xp_required >= 0)
);

CREATE TABLE IF NOT EXISTS user_streaks (
    user_id UUID PRIMARY KEY,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT non_negative_streaks CHECK (current_streak >= 0 AND longest_streak >= current_streak)
);

CREATE TABLE IF NOT EXISTS lesson_progress (
    user_id UUID NOT NULL,
    lesson_id UUID NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'in_progress',
    last_viewed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, lesson_id),
    CONSTRAINT valid_status CHECK (status IN ('not_started', 'in_progress', 'completed')),
    CONSTRAINT completed_has_timestamp CHECK (status <> 'completed' OR completed_at IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_lesson_progress_user ON lesson_progress(user_id, last_viewed_at DESC);

-- Seed the level table. New deployments start with the default curve;
-- operators may retune thresholds later.
INSERT INTO levels (level_number, xp_required, title) VALUES
    (1, 0, 'Beginner'),
    (2, 100, 'Learner'),
    (3, 250, 'Explorer'),
    (4, 500, 'Achiever'),
    (5, 1000, 'Scholar'),
    (6, 1750, 'Expert'),
    (7, 2750, 'Master'),
    (8, 4000, 'Champion'),
    (9, 5500, 'Legend'),
    (10, 7500, 'Grandmaster')
ON CONFLICT (level_number) DO NOTHING;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: BADGES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: badge catalog and unlocks
-- Version: 003

CREATE TABLE IF NOT EXISTS badges (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    code VARCHAR(50) NOT NULL UNIQUE,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category VARCHAR(20) NOT NULL,
    rarity VARCHAR(20) NOT NULL DEFAULT 'common',
    xp_required INTEGER NOT NULL DEFAULT 0,
    streak_required INTEGER NOT NULL DEFAULT 0,
    bonus_xp INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_category CHECK (category IN ('achievement', 'streak', 'mastery', 'special')),
    CONSTRAINT valid_rarity CHECK (rarity IN ('common', 'rare', 'epic', 'legendary')),
    CONSTRAINT non_negative_thresholds CHECK (xp_required >= 0 AND streak_required >= 0 AND bonus_xp >= 0)
);

CREATE INDEX IF NOT EXISTS idx_badges_category ON badges(category);

-- The composite primary key makes unlocks idempotent at the storage layer.
CREATE TABLE IF NOT EXISTS user_badges (
    user_id UUID NOT NULL,
    badge_id UUID NOT NULL REFERENCES badges(id) ON DELETE CASCADE,
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, badge_id)
);

CREATE INDEX IF NOT EXISTS idx_user_badges_user ON user_badges(user_id, earned_at DESC);

-- Seed the starter catalog.
INSERT INTO badges (code, name, description, category, rarity, xp_required, streak_required, bonus_xp) VALUES
    ('first_steps', 'First Steps', 'Earn your first XP', 'achievement', 'common', 1, 0, 0),
    ('level_5', 'Scholar', 'Reach level 5', 'achievement', 'rare', 1000, 0, 25),
    ('level_10', 'Grandmaster', 'Reach level 10', 'achievement', 'legendary', 7500, 0, 100),
    ('streak_3', 'Warming Up', 'Keep a 3-day streak', 'streak', 'common', 0, 3, 10),
    ('streak_7', 'On Fire', 'Keep a 7-day streak', 'streak', 'rare', 0, 7, 25),
    ('streak_30', 'Unstoppable', 'Keep a 30-day streak', 'streak', 'epic', 0, 30, 100)
ON CONFLICT (code) DO NOTHING;
`

// GetMigrations returns all migrations in apply order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "content_and_attempts", UpSQL: migration001Up},
		{Version: 2, Name: "rewards_streaks_progress", UpSQL: migration002Up},
		{Version: 3, Name: "badges", UpSQL: migration003Up},
	}
}
