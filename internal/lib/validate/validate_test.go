package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signUp struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	Email     string `form:"email" validate:"omitempty,email"`
	Password  string `form:"password1" validate:"required,password"`
	Password2 string `form:"password2" validate:"eqfield=Password"`
	Phone     string `form:"phone_number" validate:"max=15,phone"`
}

func TestStruct(t *testing.T) {
	cases := []struct {
		name  string
		in    signUp
		field string
		msg   string
	}{
		{
			name:  "valid",
			in:    signUp{Username: "alice.b+1", Password: "s3cret-pass", Password2: "s3cret-pass"},
			field: "",
		},
		{
			name:  "missing username",
			in:    signUp{Password: "s3cret-pass", Password2: "s3cret-pass"},
			field: "username",
			msg:   "This field is required.",
		},
		{
			name:  "bad username",
			in:    signUp{Username: "al ice", Password: "s3cret-pass", Password2: "s3cret-pass"},
			field: "username",
		},
		{
			name:  "numeric password",
			in:    signUp{Username: "alice", Password: "12345678", Password2: "12345678"},
			field: "password1",
		},
		{
			name:  "short password",
			in:    signUp{Username: "alice", Password: "abc", Password2: "abc"},
			field: "password1",
		},
		{
			name:  "mismatch",
			in:    signUp{Username: "alice", Password: "s3cret-pass", Password2: "other-pass"},
			field: "password2",
			msg:   "The two password fields didn't match.",
		},
		{
			name:  "bad email",
			in:    signUp{Username: "alice", Email: "nope", Password: "s3cret-pass", Password2: "s3cret-pass"},
			field: "email",
			msg:   "Enter a valid email address.",
		},
		{
			name:  "bad phone",
			in:    signUp{Username: "alice", Password: "s3cret-pass", Password2: "s3cret-pass", Phone: "call me"},
			field: "phone_number",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Struct(tc.in)
			if tc.field == "" {
				require.NoError(t, err)
				assert.Nil(t, Messages(err))
				return
			}

			require.Error(t, err)
			assert.True(t, IsInvalid(err))

			msgs := Messages(err)
			require.Contains(t, msgs, tc.field)
			if tc.msg != "" {
				assert.Equal(t, tc.msg, msgs[tc.field])
			}
		})
	}
}

func TestMessages_OtherError(t *testing.T) {
	err := errors.New("boom")
	assert.False(t, IsInvalid(err))
	assert.Nil(t, Messages(err))
}
