// Copyright (C) 2020 PurpleSec Team
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.
//

package tablemap

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Defaults used by Open when the matching Option is not provided.
const (
	DefaultEngine  = "mysql"
	DefaultCharset = "utf8"
	DefaultHost    = "127.0.0.1"
	DefaultPort    = 3306
)

// Config is the connection configuration used by OpenConfig. Zero values are replaced with the package defaults.
type Config struct {
	Logger   Logger
	Database string
	User     string
	Password string
	Engine   string
	Charset  string
	Host     string
	Port     int
}

// Option is a function that changes a Config before a connection is opened.
type Option func(*Config)

// WithEngine sets the engine name, such as "mysql" or "sqlite3".
func WithEngine(engine string) Option {
	return func(c *Config) {
		c.Engine = engine
	}
}

// WithCharset sets the connection character set.
func WithCharset(charset string) Option {
	return func(c *Config) {
		c.Charset = charset
	}
}

// WithHost sets the server host.
func WithHost(host string) Option {
	return func(c *Config) {
		c.Host = host
	}
}

// WithPort sets the server port.
func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

// WithLogger sets the Logger that receives every executed statement.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// String returns the connection descriptor in the form "<engine>:dbname=<database>;host=<host>;charset=<charset>".
// The password is never part of the descriptor.
func (c Config) String() string {
	c = c.withDefaults()
	return c.Engine + ":dbname=" + c.Database + ";host=" + c.Host + ";charset=" + c.Charset
}

// DSN returns the data source name passed to the database/sql driver for the configured engine.
func (c Config) DSN() (string, error) {
	c = c.withDefaults()
	d, ok := DialectOf(c.Engine)
	if !ok {
		return "", wrap(ErrUnsupported, `unknown engine "`+c.Engine+`"`, nil)
	}
	if d.driver == SQLite.driver {
		return c.Database, nil
	}
	m := mysql.NewConfig()
	m.User, m.Passwd = c.User, c.Password
	m.Net, m.Addr = "tcp", net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	m.DBName = c.Database
	// The driver reads "charset" into its own connection setup, not into Params.
	return m.FormatDSN() + "?charset=" + url.QueryEscape(c.Charset), nil
}
func (c Config) withDefaults() Config {
	if c.Engine = strings.ToLower(c.Engine); len(c.Engine) == 0 {
		c.Engine = DefaultEngine
	}
	if len(c.Charset) == 0 {
		c.Charset = DefaultCharset
	}
	if len(c.Host) == 0 {
		c.Host = DefaultHost
	}
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	return c
}
