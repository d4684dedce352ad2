package dubbing

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFilters(t *testing.T) {
	Convey("查询条件构造", t, func() {
		Convey("ownerFilter 带上用户ID", func() {
			So(ownerFilter("j1", "u1"), ShouldResemble, bson.M{"id": "j1", "user_id": "u1"})
			So(ownerFilter("j1", ""), ShouldResemble, bson.M{"id": "j1"})
		})

		Convey("listFilter 可选状态", func() {
			So(listFilter("u1", ""), ShouldResemble, bson.M{"user_id": "u1"})
			So(listFilter("u1", "failed"), ShouldResemble, bson.M{"user_id": "u1", "status": "failed"})
		})
	})
}

func TestNormalizePage(t *testing.T) {
	Convey("分页参数规范化", t, func() {
		page, size := normalizePage(0, 0)
		So(page, ShouldEqual, 1)
		So(size, ShouldEqual, 20)

		page, size = normalizePage(3, 500)
		So(page, ShouldEqual, 3)
		So(size, ShouldEqual, 20)

		_, size = normalizePage(1, 50)
		So(size, ShouldEqual, 50)
	})
}
