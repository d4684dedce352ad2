package ctxutil

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestUserID(t *testing.T) {
	Convey("context 中的用户ID", t, func() {
		_, ok := GetUserID(context.Background())
		So(ok, ShouldBeFalse)

		id, ok := GetUserID(WithUserID(context.Background(), "u1"))
		So(ok, ShouldBeTrue)
		So(id, ShouldEqual, "u1")

		_, ok = GetUserID(WithUserID(context.Background(), ""))
		So(ok, ShouldBeFalse)
	})
}
