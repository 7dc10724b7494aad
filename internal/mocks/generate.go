package mocks

//go:generate mockery --name Repository --srcpkg github.com/xtal-lab/xtal/internal/document --output ./storage --outpkg storagemocks --with-expecter
