package db

import "fmt"

// dialect holds the DDL that differs between SQLite and MySQL.
type dialect struct {
	tables  []string
	indexes []string
}

var sqliteDialect = dialect{
	tables: []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			category TEXT,
			title TEXT,
			torrent_href TEXT NOT NULL UNIQUE,
			magnet_href TEXT,
			size TEXT,
			date TEXT,
			html TEXT,
			pushed_to_transmission BOOLEAN DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS execution_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			start_time DATETIME NOT NULL,
			end_time DATETIME,
			duration_ms INTEGER,
			total_pages INTEGER DEFAULT 0,
			total_items INTEGER DEFAULT 0,
			new_items INTEGER DEFAULT 0,
			duplicate_items INTEGER DEFAULT 0,
			status TEXT CHECK(status IN ('running', 'completed', 'failed')) DEFAULT 'running',
			error_message TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
	},
	indexes: []string{
		`CREATE INDEX IF NOT EXISTS idx_listings_title ON listings(title);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_category ON listings(category);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_date ON listings(date);`,
		`CREATE INDEX IF NOT EXISTS idx_execution_logs_start_time ON execution_logs(start_time);`,
		`CREATE INDEX IF NOT EXISTS idx_execution_logs_status ON execution_logs(status);`,
	},
}

// MySQL declares its indexes inline.
var mysqlDialect = dialect{
	tables: []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id INT AUTO_INCREMENT PRIMARY KEY,
			category VARCHAR(100),
			title VARCHAR(500),
			torrent_href VARCHAR(500) NOT NULL UNIQUE,
			magnet_href VARCHAR(1000),
			size VARCHAR(50),
			date VARCHAR(50),
			html TEXT,
			pushed_to_transmission BOOLEAN DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_listings_title (title),
			INDEX idx_listings_category (category),
			INDEX idx_listings_date (date)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS execution_logs (
			id INT AUTO_INCREMENT PRIMARY KEY,
			start_time DATETIME NOT NULL,
			end_time DATETIME,
			duration_ms INT,
			total_pages INT DEFAULT 0,
			total_items INT DEFAULT 0,
			new_items INT DEFAULT 0,
			duplicate_items INT DEFAULT 0,
			status ENUM('running', 'completed', 'failed') DEFAULT 'running',
			error_message TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_execution_logs_start_time (start_time),
			INDEX idx_execution_logs_status (status)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite:
		return sqliteDialect, nil
	case DriverMySQL:
		return mysqlDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}
