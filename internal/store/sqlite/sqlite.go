package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tutorlink/chat-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying connection for migrations.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, email, name, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (id, email, name, image, password_hash)
		VALUES (?, ?, ?, '', ?)
	`
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, query, id, email, name, passwordHash); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, email, name, COALESCE(image, ''), password_hash, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `
		SELECT id, email, name, COALESCE(image, ''), password_hash, created_at
		FROM users
		WHERE email = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Image,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ==== BookingStore implementation ====

// CreateLecture creates a lecture owned by a tutor.
func (s *SQLiteStore) CreateLecture(ctx context.Context, tutorID, title string) (*store.Lecture, error) {
	query := `
		INSERT INTO lectures (id, tutor_id, title)
		VALUES (?, ?, ?)
	`
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, query, id, tutorID, title); err != nil {
		return nil, fmt.Errorf("insert lecture: %w", err)
	}

	var lecture store.Lecture
	row := s.db.QueryRowContext(ctx, `SELECT id, tutor_id, title, created_at FROM lectures WHERE id = ?`, id)
	if err := row.Scan(&lecture.ID, &lecture.TutorID, &lecture.Title, &lecture.CreatedAt); err != nil {
		return nil, fmt.Errorf("query lecture: %w", err)
	}

	return &lecture, nil
}

// CreateBooking books a lecture for a student.
func (s *SQLiteStore) CreateBooking(ctx context.Context, userID, lectureID string, status store.BookingStatus) (*store.Booking, error) {
	query := `
		INSERT INTO bookings (id, user_id, lecture_id, status)
		VALUES (?, ?, ?, ?)
	`
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, query, id, userID, lectureID, status); err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	return s.getBooking(ctx, id)
}

// UpdateBookingStatus changes a booking's status.
func (s *SQLiteStore) UpdateBookingStatus(ctx context.Context, id string, status store.BookingStatus) error {
	result, err := s.db.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("booking not found: %s", id)
	}

	return nil
}

func (s *SQLiteStore) getBooking(ctx context.Context, id string) (*store.Booking, error) {
	query := `
		SELECT id, user_id, lecture_id, status, created_at
		FROM bookings
		WHERE id = ?
	`
	var booking store.Booking
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&booking.ID,
		&booking.UserID,
		&booking.LectureID,
		&booking.Status,
		&booking.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking not found: %w", err)
		}
		return nil, fmt.Errorf("query booking: %w", err)
	}

	return &booking, nil
}

// HasRoomAccess reports whether a non-cancelled booking links roomID to
// userID as either the booking's student or the booked lecture's tutor.
// A nonexistent room reads as "no access"; callers cannot tell the two apart.
func (s *SQLiteStore) HasRoomAccess(ctx context.Context, userID, roomID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM chat_rooms cr
			JOIN bookings b ON b.id = cr.booking_id
			JOIN lectures l ON l.id = b.lecture_id
			WHERE cr.id = ?
			  AND b.status != 'CANCELLED'
			  AND (b.user_id = ? OR l.tutor_id = ?)
		)
	`
	var allowed bool
	if err := s.db.QueryRowContext(ctx, query, roomID, userID, userID).Scan(&allowed); err != nil {
		return false, fmt.Errorf("query room access: %w", err)
	}

	return allowed, nil
}

// IsBookingParticipant reports whether userID is the student or the
// lecture's tutor on a non-cancelled booking.
func (s *SQLiteStore) IsBookingParticipant(ctx context.Context, userID, bookingID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM bookings b
			JOIN lectures l ON l.id = b.lecture_id
			WHERE b.id = ?
			  AND b.status != 'CANCELLED'
			  AND (b.user_id = ? OR l.tutor_id = ?)
		)
	`
	var participant bool
	if err := s.db.QueryRowContext(ctx, query, bookingID, userID, userID).Scan(&participant); err != nil {
		return false, fmt.Errorf("query booking participant: %w", err)
	}

	return participant, nil
}

// ==== ChatRoomStore implementation ====

// CreateChatRoom creates the chat room for a booking.
func (s *SQLiteStore) CreateChatRoom(ctx context.Context, bookingID string) (*store.ChatRoom, error) {
	query := `
		INSERT INTO chat_rooms (id, booking_id)
		VALUES (?, ?)
	`
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, query, id, bookingID); err != nil {
		return nil, fmt.Errorf("insert chat room: %w", err)
	}

	return s.getChatRoom(ctx, id)
}

// GetChatRoomByBooking retrieves a booking's chat room, or nil if the
// booking has none yet.
func (s *SQLiteStore) GetChatRoomByBooking(ctx context.Context, bookingID string) (*store.ChatRoom, error) {
	query := `
		SELECT id, booking_id, created_at
		FROM chat_rooms
		WHERE booking_id = ?
	`
	var room store.ChatRoom
	err := s.db.QueryRowContext(ctx, query, bookingID).Scan(&room.ID, &room.BookingID, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query chat room: %w", err)
	}

	return &room, nil
}

// GetBookingForRoom retrieves the booking a room belongs to.
func (s *SQLiteStore) GetBookingForRoom(ctx context.Context, roomID string) (*store.Booking, error) {
	query := `
		SELECT b.id, b.user_id, b.lecture_id, b.status, b.created_at
		FROM bookings b
		JOIN chat_rooms cr ON cr.booking_id = b.id
		WHERE cr.id = ?
	`
	var booking store.Booking
	err := s.db.QueryRowContext(ctx, query, roomID).Scan(
		&booking.ID,
		&booking.UserID,
		&booking.LectureID,
		&booking.Status,
		&booking.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking not found for room: %w", err)
		}
		return nil, fmt.Errorf("query booking for room: %w", err)
	}

	return &booking, nil
}

func (s *SQLiteStore) getChatRoom(ctx context.Context, id string) (*store.ChatRoom, error) {
	query := `
		SELECT id, booking_id, created_at
		FROM chat_rooms
		WHERE id = ?
	`
	var room store.ChatRoom
	err := s.db.QueryRowContext(ctx, query, id).Scan(&room.ID, &room.BookingID, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chat room not found: %w", err)
		}
		return nil, fmt.Errorf("query chat room: %w", err)
	}

	return &room, nil
}

// ==== MessageStore implementation ====

// CreateMessage persists a message and returns it with the sender's display
// name and image joined in.
func (s *SQLiteStore) CreateMessage(ctx context.Context, roomID, senderID, content string) (*store.Message, error) {
	query := `
		INSERT INTO messages (room_id, sender_id, content)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, roomID, senderID, content)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.getMessage(ctx, id)
}

// ListMessages retrieves a room's messages in the order they were persisted,
// oldest first. Autoincrement ids make insertion order the sort order.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID string) ([]*store.Message, error) {
	query := `
		SELECT m.id, m.room_id, m.sender_id, u.name, COALESCE(u.image, ''), m.content, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.room_id = ?
		ORDER BY m.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var msg store.Message
		err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.SenderID,
			&msg.SenderName,
			&msg.SenderImage,
			&msg.Content,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

func (s *SQLiteStore) getMessage(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT m.id, m.room_id, m.sender_id, u.name, COALESCE(u.image, ''), m.content, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.id = ?
	`
	var msg store.Message
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.SenderID,
		&msg.SenderName,
		&msg.SenderImage,
		&msg.Content,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message not found: %w", err)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}

	return &msg, nil
}
