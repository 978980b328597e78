package accounts

import "time"

// Permission is a capability flag. Roles compose permissions with bitwise OR;
// the role's permission set is authoritative for every capability check.
type Permission uint8

const (
	PermFollow        Permission = 1 << 0
	PermComment       Permission = 1 << 1
	PermWriteArticles Permission = 1 << 2
	PermModerate      Permission = 1 << 3
	PermAdminister    Permission = 1 << 7
)

// PermAll marks the administrator role: every bit set.
const PermAll Permission = 0xff

// Has reports whether every bit of perm is present in p.
func (p Permission) Has(perm Permission) bool {
	return p&perm == perm
}

// Role names seeded at startup.
const (
	RoleNameUser          = "User"
	RoleNameModerator     = "Moderator"
	RoleNameAdministrator = "Administrator"
)

// Role is a named permission set. Exactly one role is marked default and is
// assigned to new users whose email is not the configured administrator.
type Role struct {
	ID          int64
	Name        string
	Default     bool
	Permissions Permission
}

// Can reports whether the role grants perm. Nil roles grant nothing, which
// covers anonymous capability checks.
func (r *Role) Can(perm Permission) bool {
	return r != nil && r.Permissions.Has(perm)
}

// SeedRoles returns the built-in roles in insertion order.
func SeedRoles() []Role {
	return []Role{
		{Name: RoleNameUser, Default: true, Permissions: PermFollow | PermComment | PermWriteArticles},
		{Name: RoleNameModerator, Permissions: PermFollow | PermComment | PermWriteArticles | PermModerate},
		{Name: RoleNameAdministrator, Permissions: PermAll},
	}
}

// User is an account identity. PasswordHash is never serialized; AvatarHash is
// derived from the email address and recomputed when it changes.
type User struct {
	ID           int64
	Email        string
	Username     string
	StudentNo    int
	RoleID       int64
	PasswordHash string
	Confirmed    bool
	IsTeacher    bool
	Name         string
	Location     string
	Tel          string
	AboutMe      string
	MemberSince  time.Time
	LastSeen     time.Time
	AvatarHash   string
	AvatarFile   string
}

// Follow is a directed subscription edge. (FollowerID, FollowedID) is unique;
// every user carries a self-follow edge from creation so timelines include
// their own posts.
type Follow struct {
	FollowerID int64
	FollowedID int64
	Timestamp  time.Time
}

// Feed identifies a notification feed whose last-viewed time is tracked per
// user. Unread counts compare item timestamps against the stored click time.
type Feed string

const (
	FeedCommentsOnMe     Feed = "comments_on_me"
	FeedFollowedBy       Feed = "followed_by"
	FeedMentions         Feed = "mentions"
	FeedAllUsers         Feed = "all_users"
	FeedLessonDiscussion Feed = "lesson_discussion"
	FeedLessonStudents   Feed = "lesson_students"
	FeedLessonNamelist   Feed = "lesson_namelist"
	FeedLessonExercise   Feed = "lesson_exercise"
	FeedLessonSeat       Feed = "lesson_seat"
)

// ClickTime records when a user last viewed one feed.
type ClickTime struct {
	UserID    int64
	Feed      Feed
	ClickedAt time.Time
}
