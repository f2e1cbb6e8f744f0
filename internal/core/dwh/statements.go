package dwh

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const (
	StagingEventsTable = "staging_events"
	StagingSongsTable  = "staging_songs"
	SongplaysTable     = "ft_songplays"
	UsersTable         = "dm_users"
	SongsTable         = "dm_songs"
	ArtistsTable       = "dm_artists"
	TimeTable          = "dm_time"
)

var tables = []TableDefinition{
	{
		Name: StagingEventsTable,
		Kind: Staging,
		Create: `CREATE TABLE IF NOT EXISTS staging_events (
	artist VARCHAR,
	auth VARCHAR,
	firstName VARCHAR,
	gender CHAR(1),
	itemInSession INTEGER,
	lastName VARCHAR,
	length FLOAT,
	level VARCHAR(10),
	location VARCHAR,
	method VARCHAR,
	page VARCHAR,
	registration FLOAT,
	sessionId INTEGER,
	song VARCHAR,
	status INTEGER,
	ts TIMESTAMP SORTKEY,
	userAgent VARCHAR,
	userId INTEGER
);`,
	},
	{
		Name: StagingSongsTable,
		Kind: Staging,
		Create: `CREATE TABLE IF NOT EXISTS staging_songs (
	num_songs INTEGER,
	artist_id VARCHAR,
	artist_latitude DECIMAL(10,6),
	artist_longitude DECIMAL(10,6),
	artist_location VARCHAR,
	artist_name VARCHAR,
	song_id VARCHAR,
	title VARCHAR,
	duration DECIMAL,
	year INTEGER
);`,
	},
	{
		Name: SongplaysTable,
		Kind: Fact,
		Create: `CREATE TABLE IF NOT EXISTS ft_songplays (
	songplay_id INTEGER IDENTITY(0,1) PRIMARY KEY,
	start_time TIMESTAMP NOT NULL,
	user_id INTEGER NOT NULL,
	level VARCHAR(10),
	song_id VARCHAR NOT NULL,
	artist_id VARCHAR NOT NULL DISTKEY SORTKEY,
	session_id INTEGER,
	location VARCHAR,
	user_agent VARCHAR
);`,
	},
	{
		Name: UsersTable,
		Kind: Dimension,
		Create: `CREATE TABLE IF NOT EXISTS dm_users (
	user_id INTEGER NOT NULL PRIMARY KEY DISTKEY,
	first_name VARCHAR NOT NULL,
	last_name VARCHAR NOT NULL,
	gender CHAR(1) NOT NULL,
	level VARCHAR(10) NOT NULL
);`,
	},
	{
		Name: SongsTable,
		Kind: Dimension,
		Create: `CREATE TABLE IF NOT EXISTS dm_songs (
	song_id VARCHAR NOT NULL PRIMARY KEY DISTKEY,
	title VARCHAR NOT NULL,
	artist_id VARCHAR NOT NULL SORTKEY,
	year INTEGER NOT NULL,
	duration DECIMAL
);`,
	},
	{
		Name: ArtistsTable,
		Kind: Dimension,
		Create: `CREATE TABLE IF NOT EXISTS dm_artists (
	artist_id VARCHAR NOT NULL PRIMARY KEY SORTKEY DISTKEY,
	name VARCHAR NOT NULL,
	location VARCHAR,
	latitude DECIMAL(10,6),
	longitude DECIMAL(10,6)
);`,
	},
	{
		Name: TimeTable,
		Kind: Dimension,
		Create: `CREATE TABLE IF NOT EXISTS dm_time (
	start_time TIMESTAMP NOT NULL PRIMARY KEY SORTKEY DISTKEY,
	hour INTEGER NOT NULL,
	day INTEGER NOT NULL,
	week INTEGER NOT NULL,
	month INTEGER NOT NULL,
	year INTEGER NOT NULL,
	weekday INTEGER NOT NULL
);`,
	},
}

func init() {
	for i := range tables {
		tables[i].Drop = fmt.Sprintf("DROP TABLE IF EXISTS %s", tables[i].Name)
	}
}

// Tables returns the warehouse table definitions in declaration order.
func Tables() []TableDefinition {
	result := make([]TableDefinition, len(tables))
	copy(result, tables)
	return result
}

// CopyStatement describes a Redshift COPY of one S3 feed into a staging table.
// An empty JSONPaths means the column mapping is inferred ('auto').
type CopyStatement struct {
	Table      string
	Source     string
	IamRole    string
	Region     string
	JSONPaths  string
	TimeFormat string
}

func (c CopyStatement) Validate() error {
	if c.Table == "" {
		return fmt.Errorf("copy target table must be set")
	}
	if !strings.HasPrefix(c.Source, "s3://") {
		return fmt.Errorf("copy source for %s must be an s3:// uri, got %q", c.Table, c.Source)
	}
	if !strings.HasPrefix(c.IamRole, "arn:") {
		return fmt.Errorf("copy into %s needs an IAM role arn, got %q", c.Table, c.IamRole)
	}
	if c.Region == "" {
		return fmt.Errorf("copy into %s needs a region", c.Table)
	}
	if c.JSONPaths != "" && !strings.HasPrefix(c.JSONPaths, "s3://") {
		return fmt.Errorf("json paths for %s must be an s3:// uri, got %q", c.Table, c.JSONPaths)
	}
	return nil
}

// SQL renders the statement. COPY does not accept bind parameters, so every
// literal goes through pq.QuoteLiteral and the table through pq.QuoteIdentifier.
func (c CopyStatement) SQL() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}

	jsonPaths := "auto"
	if c.JSONPaths != "" {
		jsonPaths = c.JSONPaths
	}

	var b strings.Builder
	fmt.Fprintf(&b, "COPY %s FROM %s\n", pq.QuoteIdentifier(c.Table), pq.QuoteLiteral(c.Source))
	fmt.Fprintf(&b, "IAM_ROLE %s\n", pq.QuoteLiteral(c.IamRole))
	b.WriteString("TRUNCATECOLUMNS BLANKSASNULL EMPTYASNULL\n")
	if c.TimeFormat != "" {
		fmt.Fprintf(&b, "TIMEFORMAT AS %s\n", pq.QuoteLiteral(c.TimeFormat))
	}
	fmt.Fprintf(&b, "JSON %s\n", pq.QuoteLiteral(jsonPaths))
	b.WriteString("COMPUPDATE OFF\n")
	fmt.Fprintf(&b, "REGION %s;", pq.QuoteLiteral(c.Region))

	return b.String(), nil
}

// Sources are the external feeds loaded into staging.
type Sources struct {
	EventsURI       string
	EventsJSONPaths string
	SongsURI        string
	Region          string
	Role            RoleGrant
}

func (s Sources) Copies() []CopyStatement {
	return []CopyStatement{
		{
			Table:      StagingEventsTable,
			Source:     s.EventsURI,
			IamRole:    s.Role.Arn,
			Region:     s.Region,
			JSONPaths:  s.EventsJSONPaths,
			TimeFormat: "epochmillisecs",
		},
		{
			Table:   StagingSongsTable,
			Source:  s.SongsURI,
			IamRole: s.Role.Arn,
			Region:  s.Region,
		},
	}
}

// CopyStatements renders one COPY per feed, events first.
func CopyStatements(sources Sources) ([]Statement, error) {
	var result []Statement
	for _, c := range sources.Copies() {
		sql, err := c.SQL()
		if err != nil {
			return nil, err
		}
		result = append(result, Statement{Name: "copy " + c.Table, SQL: sql})
	}
	return result, nil
}

var insertStatements = []Statement{
	{
		Name: "insert " + UsersTable,
		SQL: `INSERT INTO dm_users (user_id, first_name, last_name, gender, level)
SELECT DISTINCT (userId) AS user_id,
	firstName AS first_name,
	lastName AS last_name,
	gender AS gender,
	level AS level
FROM staging_events
WHERE userId IS NOT NULL
AND page = 'NextSong';`,
	},
	{
		Name: "insert " + SongsTable,
		SQL: `INSERT INTO dm_songs (song_id, title, artist_id, year, duration)
SELECT DISTINCT (song_id),
	title,
	artist_id,
	year,
	duration
FROM staging_songs
WHERE song_id IS NOT NULL;`,
	},
	{
		Name: "insert " + ArtistsTable,
		SQL: `INSERT INTO dm_artists (artist_id, name, location, latitude, longitude)
SELECT DISTINCT (artist_id) AS artist_id,
	artist_name AS name,
	artist_location AS location,
	artist_latitude AS latitude,
	artist_longitude AS longitude
FROM staging_songs
WHERE artist_id IS NOT NULL;`,
	},
	{
		Name: "insert " + TimeTable,
		SQL: `INSERT INTO dm_time (start_time, hour, day, week, month, year, weekday)
SELECT DISTINCT (ts),
	EXTRACT(hour FROM ts),
	EXTRACT(day FROM ts),
	EXTRACT(week FROM ts),
	EXTRACT(month FROM ts),
	EXTRACT(year FROM ts),
	EXTRACT(weekday FROM ts)
FROM staging_events
WHERE ts IS NOT NULL
AND userId IS NOT NULL
AND page = 'NextSong';`,
	},
	{
		Name: "insert " + SongplaysTable,
		SQL: `INSERT INTO ft_songplays (start_time, user_id, level, song_id, artist_id,
	session_id, location, user_agent)
SELECT DISTINCT (se.ts),
	se.userId,
	se.level,
	ss.song_id,
	ss.artist_id,
	se.sessionId,
	se.location,
	se.userAgent
FROM staging_events se
JOIN staging_songs ss
ON se.song = ss.title
AND se.artist = ss.artist_name
WHERE se.userId IS NOT NULL
AND se.page = 'NextSong';`,
	},
}

// InsertStatements returns the dimension inserts followed by the fact insert.
// The fact insert joins both staging tables and must run last.
func InsertStatements() []Statement {
	return cloneStatements(insertStatements)
}

func InsertStatement(table string) (Statement, bool) {
	for _, s := range insertStatements {
		if s.Name == "insert "+table {
			return s, true
		}
	}
	return Statement{}, false
}

var countLabels = []struct {
	label string
	table string
}{
	{"Staging_Events:", StagingEventsTable},
	{"Staging_Songs:", StagingSongsTable},
	{"Songplays:", SongplaysTable},
	{"Users:", UsersTable},
	{"Songs:", SongsTable},
	{"Artists:", ArtistsTable},
	{"Time:", TimeTable},
}

// CountStatements return a "label, count" row per table.
func CountStatements() []Statement {
	result := make([]Statement, 0, len(countLabels))
	for _, c := range countLabels {
		result = append(result, Statement{
			Name: "count " + c.table,
			SQL:  fmt.Sprintf("SELECT %s, COUNT(*) FROM %s;", pq.QuoteLiteral(c.label), c.table),
		})
	}
	return result
}

var analyticalQueries = []Statement{
	{
		Name: "top songs",
		SQL: `WITH topsid AS (
	SELECT song_id, count(*)
	FROM ft_songplays
	GROUP BY song_id
	ORDER BY 2 DESC
	LIMIT 10
)
SELECT '"' || dms.title || '" by ' || dma.name || ' played ' || ft.count || ' times.'
FROM topsid AS ft
INNER JOIN dm_songs dms
ON ft.song_id = dms.song_id
INNER JOIN dm_artists dma
ON dms.artist_id = dma.artist_id
GROUP BY dms.title, dma.name, ft.count
ORDER BY ft.count DESC`,
	},
	{
		Name: "top artists",
		SQL: `WITH topart AS (
	SELECT artist_id, song_id, count(*)
	FROM ft_songplays
	GROUP BY artist_id, song_id
	ORDER BY 2 DESC
	LIMIT 10
)
SELECT '"' || dma.name || '" was played ' || ft.count || ' times.'
FROM topart AS ft
INNER JOIN dm_artists dma
ON ft.artist_id = dma.artist_id
INNER JOIN dm_songs dms
ON ft.song_id = dms.song_id
GROUP BY dma.name, ft.count
ORDER BY ft.count DESC`,
	},
	{
		Name: "paid versus free",
		SQL: `WITH p AS (
	SELECT count(user_id) AS paid
	FROM dm_users
	WHERE level = 'paid'
),
f AS (
	SELECT count(user_id) AS free
	FROM dm_users
	WHERE level = 'free'
)
SELECT 'Ratio: ', 'Free users: ' || f.free, 'Paid users: ' || p.paid, (f.free / p.paid) || ':' || (p.paid / p.paid)
FROM p, f`,
	},
	{
		Name: "peak usage day",
		// ranked by the songplay count in column 3, not by the constant label in column 2
		SQL: `SELECT
	CASE
		WHEN dmt.weekday = 1 THEN 'Monday'
		WHEN dmt.weekday = 2 THEN 'Tuesday'
		WHEN dmt.weekday = 3 THEN 'Wednesday'
		WHEN dmt.weekday = 4 THEN 'Thursday'
		WHEN dmt.weekday = 5 THEN 'Friday'
		WHEN dmt.weekday = 6 THEN 'Saturday'
		WHEN dmt.weekday = 7 THEN 'Sunday'
	END,
	'Total songplays:', count(*)
FROM dm_time dmt
GROUP BY dmt.weekday
ORDER BY 3 DESC
LIMIT 1`,
	},
}

func AnalyticalQueries() []Statement {
	return cloneStatements(analyticalQueries)
}

func cloneStatements(statements []Statement) []Statement {
	result := make([]Statement, len(statements))
	copy(result, statements)
	return result
}

// ListTablesQuery lists the user tables of the warehouse.
var ListTablesQuery = Statement{
	Name: "tables",
	SQL: `SELECT tablename
FROM pg_catalog.pg_tables
WHERE schemaname != 'pg_catalog'
AND schemaname != 'information_schema'
ORDER BY tablename;`,
}
