package database

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		service TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		message TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_created ON bookings(created_at)`,
	`CREATE TABLE IF NOT EXISTS admin_users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS applications (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		aadhar TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		income TEXT NOT NULL DEFAULT '',
		mobile TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS contact_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sync_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_type TEXT NOT NULL,
		booking_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at DATETIME NOT NULL,
		processed_at DATETIME,
		next_retry_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS bookings (
		id VARCHAR(20) PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		email VARCHAR(100) NOT NULL,
		phone VARCHAR(20) NOT NULL,
		service VARCHAR(100) NOT NULL,
		date VARCHAR(10) NOT NULL,
		time VARCHAR(5) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		message TEXT,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_bookings_status (status),
		INDEX idx_bookings_date (date),
		INDEX idx_bookings_created (created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS admin_users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(50) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS applications (
		id VARCHAR(20) PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		aadhar CHAR(12) NOT NULL,
		category VARCHAR(50) NOT NULL DEFAULT '',
		address TEXT,
		income VARCHAR(50) NOT NULL DEFAULT '',
		mobile VARCHAR(20) NOT NULL DEFAULT '',
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS contact_messages (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		email VARCHAR(100) NOT NULL,
		phone VARCHAR(20) NOT NULL DEFAULT '',
		message TEXT,
		created_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sync_queue (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		task_type VARCHAR(32) NOT NULL,
		booking_id VARCHAR(20) NOT NULL,
		payload TEXT NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		retry_count INT NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at DATETIME(6) NOT NULL,
		processed_at DATETIME(6) NULL,
		next_retry_at DATETIME(6) NULL,
		INDEX idx_sync_queue_status (status, next_retry_at)
	)`,
}
