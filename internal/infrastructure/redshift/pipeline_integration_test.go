//go:build integration
// +build integration

package redshift

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/lunarway/dwh-pipeline/internal/core/dwh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// The warehouse DDL uses Redshift-only attributes, so the staging fixtures
// below declare the same columns in plain Postgres.
var postgresTables = []string{
	`CREATE TABLE staging_events (artist VARCHAR, auth VARCHAR, firstName VARCHAR, gender CHAR(1), itemInSession INTEGER,
		lastName VARCHAR, length FLOAT, level VARCHAR(10), location VARCHAR, method VARCHAR, page VARCHAR, registration FLOAT,
		sessionId INTEGER, song VARCHAR, status INTEGER, ts TIMESTAMP, userAgent VARCHAR, userId INTEGER)`,
	`CREATE TABLE staging_songs (num_songs INTEGER, artist_id VARCHAR, artist_latitude DECIMAL(10,6), artist_longitude DECIMAL(10,6),
		artist_location VARCHAR, artist_name VARCHAR, song_id VARCHAR, title VARCHAR, duration DECIMAL, year INTEGER)`,
	`CREATE TABLE ft_songplays (songplay_id SERIAL PRIMARY KEY, start_time TIMESTAMP NOT NULL, user_id INTEGER NOT NULL,
		level VARCHAR(10), song_id VARCHAR NOT NULL, artist_id VARCHAR NOT NULL, session_id INTEGER, location VARCHAR, user_agent VARCHAR)`,
	`CREATE TABLE dm_users (user_id INTEGER NOT NULL PRIMARY KEY, first_name VARCHAR NOT NULL, last_name VARCHAR NOT NULL,
		gender CHAR(1) NOT NULL, level VARCHAR(10) NOT NULL)`,
	`CREATE TABLE dm_songs (song_id VARCHAR NOT NULL PRIMARY KEY, title VARCHAR NOT NULL, artist_id VARCHAR NOT NULL,
		year INTEGER NOT NULL, duration DECIMAL)`,
	`CREATE TABLE dm_artists (artist_id VARCHAR NOT NULL PRIMARY KEY, name VARCHAR NOT NULL, location VARCHAR,
		latitude DECIMAL(10,6), longitude DECIMAL(10,6))`,
	`CREATE TABLE dm_time (start_time TIMESTAMP NOT NULL PRIMARY KEY, hour INTEGER NOT NULL, day INTEGER NOT NULL,
		week INTEGER NOT NULL, month INTEGER NOT NULL, year INTEGER NOT NULL, weekday INTEGER NOT NULL)`,
}

var fixtures = []string{
	`INSERT INTO staging_events (artist, firstName, lastName, gender, level, location, page, sessionId, song, ts, userAgent, userId) VALUES
		('Dwight Yoakam', 'Lily', 'Koch', 'F', 'paid', 'Chicago', 'NextSong', 818, 'You''re The One', '2018-11-15 00:30:26', 'Mozilla', 15),
		('Bjork', 'Kevin', 'Arellano', 'M', 'free', 'Harrisburg', 'NextSong', 815, 'Not Listed', '2018-11-15 01:12:04', 'Mozilla', 66),
		('Dwight Yoakam', NULL, NULL, NULL, 'free', 'Unknown', 'NextSong', 901, 'You''re The One', '2018-11-15 02:00:00', 'Mozilla', NULL),
		('Bjork', 'Kevin', 'Arellano', 'M', 'free', 'Harrisburg', 'Home', 815, NULL, '2018-11-15 03:45:10', 'Mozilla', 66),
		('Muse', 'Lily', 'Koch', 'F', 'paid', 'Chicago', 'NextSong', 818, 'Hysteria', '2018-11-15 00:30:26', 'Mozilla', 15)`,
	`INSERT INTO staging_songs (num_songs, artist_id, artist_latitude, artist_longitude, artist_location, artist_name, song_id, title, duration, year) VALUES
		(1, 'ARH6W4X1187B99274F', NULL, NULL, '', 'Dwight Yoakam', 'SOZCTXZ12AB0182364', 'You''re The One', 239.3, 1990),
		(1, 'AR5KOSW1187FB35FF4', 49.80388, 15.47491, 'Iceland', 'Bjork', 'SOUDSGM12AC9618304', 'Undo', 338.2, 2001)`,
}

func setUpPostgres(t *testing.T) *Client {
	t.Helper()
	background := context.Background()

	container, err := postgres.Run(background,
		"postgres:16-alpine",
		postgres.WithDatabase("dwh"),
		postgres.WithUsername("dwhuser"),
		postgres.WithPassword("Passw0rd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	connectionString, err := container.ConnectionString(background, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connectionString)
	require.NoError(t, err)

	client := NewClientWithDB(db)
	t.Cleanup(func() { _ = client.Close() })

	for _, statement := range append(postgresTables, fixtures...) {
		require.NoError(t, client.Exec(background, statement))
	}
	return client
}

func count(t *testing.T, client *Client, statement string) int64 {
	rows, err := client.Query(context.Background(), statement)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0][0].(int64)
}

func TestLoadPipeline_PopulateFixtures(t *testing.T) {
	client := setUpPostgres(t)
	assert := assert.New(t)
	eventRecorder := &EventRecorder{}
	pipeline := NewLoadPipeline(client, eventRecorder, logr.Discard())

	var inserts []dwh.Statement
	for _, table := range []string{dwh.UsersTable, dwh.SongsTable, dwh.ArtistsTable, dwh.TimeTable, dwh.SongplaysTable} {
		statement, ok := dwh.InsertStatement(table)
		require.True(t, ok)
		inserts = append(inserts, statement)
	}
	// Postgres names the day of week dow
	inserts[3].SQL = strings.Replace(inserts[3].SQL, "EXTRACT(weekday", "EXTRACT(dow", 1)

	require.NoError(t, pipeline.PopulateWarehouse(context.Background(), inserts))

	assert.Equal(int64(2), count(t, client, "SELECT COUNT(*) FROM dm_users"), "the event without a user is skipped")
	assert.Equal(int64(2), count(t, client, "SELECT COUNT(*) FROM dm_songs"))
	assert.Equal(int64(2), count(t, client, "SELECT COUNT(*) FROM dm_artists"))

	songplays := count(t, client, "SELECT COUNT(*) FROM ft_songplays")
	assert.LessOrEqual(songplays, int64(2))
	assert.Equal(int64(1), songplays, "only the event matching a song by title and artist is a songplay")

	assert.Equal(int64(0), count(t, client, `SELECT COUNT(*) FROM ft_songplays f
		LEFT JOIN dm_songs s ON f.song_id = s.song_id
		LEFT JOIN dm_artists a ON f.artist_id = a.artist_id
		WHERE s.song_id IS NULL OR a.artist_id IS NULL`), "every songplay references a known song and artist")

	qualifying := count(t, client, `SELECT COUNT(DISTINCT ts) FROM staging_events
		WHERE ts IS NOT NULL AND userId IS NOT NULL AND page = 'NextSong'`)
	assert.Equal(int64(2), qualifying)
	assert.Equal(qualifying, count(t, client, "SELECT COUNT(*) FROM dm_time"), "one time row per qualifying timestamp")
	assert.Equal(int64(0), count(t, client, "SELECT COUNT(*) FROM dm_time WHERE start_time = '2018-11-15 03:45:10'"),
		"events other than NextSong have no time row")

	for _, key := range []struct{ table, column string }{
		{dwh.UsersTable, "user_id"},
		{dwh.SongsTable, "song_id"},
		{dwh.ArtistsTable, "artist_id"},
		{dwh.TimeTable, "start_time"},
	} {
		duplicates := count(t, client, "SELECT COUNT(*) FROM (SELECT "+key.column+" FROM "+key.table+
			" GROUP BY "+key.column+" HAVING COUNT(*) > 1) d")
		assert.Equal(int64(0), duplicates, "%s.%s is unique", key.table, key.column)
	}
}

func TestSchemaManager_DropAllOnEmptyDatabase(t *testing.T) {
	client := setUpPostgres(t)
	schema := NewSchemaManager(client, &EventRecorder{}, logr.Discard())

	require.NoError(t, schema.DropAll(context.Background(), dwh.Tables()))
	require.NoError(t, schema.DropAll(context.Background(), dwh.Tables()), "dropping missing tables is a no-op")
}

func TestClient_QueryIsReadOnly(t *testing.T) {
	client := setUpPostgres(t)

	err := client.Exec(context.Background(), "SELECT 1")
	require.NoError(t, err)

	_, err = client.Query(context.Background(), "INSERT INTO dm_users VALUES (1, 'a', 'b', 'F', 'free') RETURNING user_id")
	assert.Error(t, err, "queries run in a read-only transaction")
}
