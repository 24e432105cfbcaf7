// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package columnar_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	sdk "github.com/columnar-sdk/columnar-go"
	"github.com/columnar-sdk/columnar-go/driver/columnar"
	"github.com/columnar-sdk/columnar-go/sqldriver"
	_ "github.com/columnar-sdk/columnar-go/sqldriver/columnar"
	"github.com/stretchr/testify/suite"
)

func Example() {
	// Be sure to import the driver first:
	// import _ "github.com/columnar-sdk/columnar-go/sqldriver/columnar"

	db, err := sql.Open("columnar", "uri=sqlite://")
	if err != nil {
		panic(err)
	}
	defer db.Close()

	var one int64
	if err := db.QueryRow(`SELECT 1 AS "$1"`).Scan(&one); err != nil {
		panic(err)
	}
	fmt.Println(one)

	// Output:
	// 1
}

type SQLDriverSuite struct {
	suite.Suite

	ctx context.Context
	db  *sql.DB
}

func TestSQLDriver(t *testing.T) {
	suite.Run(t, new(SQLDriverSuite))
}

func (s *SQLDriverSuite) SetupTest() {
	s.ctx = context.Background()
	var err error
	s.db, err = sql.Open("columnar", "uri=sqlite://;query_timeout=30s")
	s.Require().NoError(err)

	_, err = s.db.ExecContext(s.ctx, `CREATE TABLE airline (id INTEGER, name TEXT, country TEXT, extra TEXT)`)
	s.Require().NoError(err)
	_, err = s.db.ExecContext(s.ctx, `INSERT INTO airline VALUES (?, ?, ?, NULL), (?, ?, ?, json('{"alliance":"skyteam"}'))`,
		10, "40-Mile Air", "United States", 137, "Air France", "France")
	s.Require().NoError(err)
}

func (s *SQLDriverSuite) TearDownTest() {
	s.NoError(s.db.Close())
}

func (s *SQLDriverSuite) TestQuery() {
	rows, err := s.db.QueryContext(s.ctx, `SELECT id, name, extra FROM airline ORDER BY id`)
	s.Require().NoError(err)
	defer rows.Close()

	cols, err := rows.Columns()
	s.Require().NoError(err)
	s.Equal([]string{"id", "name", "extra"}, cols)

	type airline struct {
		id    int64
		name  string
		extra sql.NullString
	}
	var got []airline
	for rows.Next() {
		var a airline
		s.Require().NoError(rows.Scan(&a.id, &a.name, &a.extra))
		got = append(got, a)
	}
	s.Require().NoError(rows.Err())
	s.Equal([]airline{
		{id: 10, name: "40-Mile Air"},
		{id: 137, name: "Air France", extra: sql.NullString{String: `{"alliance":"skyteam"}`, Valid: true}},
	}, got)
}

func (s *SQLDriverSuite) TestNamedParameters() {
	var name string
	err := s.db.QueryRowContext(s.ctx, `SELECT name FROM airline WHERE country = $country`,
		sql.Named("country", "France")).Scan(&name)
	s.Require().NoError(err)
	s.Equal("Air France", name)
}

func (s *SQLDriverSuite) TestPrepared() {
	stmt, err := s.db.PrepareContext(s.ctx, `SELECT count(*) AS n FROM airline WHERE id > ?`)
	s.Require().NoError(err)
	defer stmt.Close()

	var n int64
	s.Require().NoError(stmt.QueryRowContext(s.ctx, 0).Scan(&n))
	s.EqualValues(2, n)
	s.Require().NoError(stmt.QueryRowContext(s.ctx, 100).Scan(&n))
	s.EqualValues(1, n)
}

func (s *SQLDriverSuite) TestNoRows() {
	var name string
	err := s.db.QueryRowContext(s.ctx, `SELECT name FROM airline WHERE id = 0`).Scan(&name)
	s.ErrorIs(err, sql.ErrNoRows)
}

func (s *SQLDriverSuite) TestQueryError() {
	_, err := s.db.QueryContext(s.ctx, `SELEC 1`)
	s.True(sdk.IsStatus(err, sdk.StatusQuery), "got %v", err)
}

func (s *SQLDriverSuite) TestContextOptions() {
	ctx := sqldriver.SetQueryOptionsInCtx(s.ctx, columnar.WithReadOnly(true))
	_, err := s.db.ExecContext(ctx, `DELETE FROM airline`)
	s.True(sdk.IsStatus(err, sdk.StatusQuery), "got %v", err)

	var n int64
	s.Require().NoError(s.db.QueryRowContext(s.ctx, `SELECT count(*) FROM airline`).Scan(&n))
	s.EqualValues(2, n)
}

func (s *SQLDriverSuite) TestTransactions() {
	_, err := s.db.BeginTx(s.ctx, nil)
	s.True(sdk.IsStatus(err, sdk.StatusFeatureUnavailable), "got %v", err)
}

func (s *SQLDriverSuite) TestInvalidDSN() {
	// the cluster is opened by sql.Open
	_, err := sql.Open("columnar", "username=u")
	s.True(sdk.IsStatus(err, sdk.StatusInvalidArgument), "got %v", err)

	_, err = sql.Open("columnar", "uri=nosuch://host")
	s.True(sdk.IsStatus(err, sdk.StatusFeatureUnavailable), "got %v", err)
}
