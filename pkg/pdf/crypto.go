package pdf

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rc4"
	"errors"
	"fmt"
)

// cryptMethod is the cipher applied to strings or streams
type cryptMethod int

const (
	cryptIdentity cryptMethod = iota
	cryptRC4
	cryptAESV2
)

// SecurityHandler implements the standard security handler, revisions 2 to 4
type SecurityHandler struct {
	Version     int
	Revision    int
	KeyLength   int // bytes
	Permissions int32
	OwnerKey    []byte
	UserKey     []byte
	EncryptMeta bool
	DocumentID  []byte

	streams cryptMethod
	strings cryptMethod
	key     []byte
}

// PDF password padding
var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// newSecurityHandler reads an Encrypt dictionary. Only the Standard filter
// with V 1, 2 or 4 is understood; everything else is ErrEncrypted.
func newSecurityHandler(dict Dictionary, documentID []byte) (*SecurityHandler, error) {
	if filter, _ := dict.GetName("Filter"); filter != "Standard" {
		return nil, fmt.Errorf("%w: security handler %q not supported", ErrEncrypted, filter)
	}

	sh := &SecurityHandler{
		KeyLength:   5,
		EncryptMeta: true,
		DocumentID:  documentID,
		streams:     cryptRC4,
		strings:     cryptRC4,
	}
	if v, ok := dict.GetInt("V"); ok {
		sh.Version = int(v)
	}
	if r, ok := dict.GetInt("R"); ok {
		sh.Revision = int(r)
	}
	if length, ok := dict.GetInt("Length"); ok && length >= 40 && length <= 128 {
		sh.KeyLength = int(length / 8)
	}
	if p, ok := dict.GetInt("P"); ok {
		sh.Permissions = int32(p)
	}
	if o, ok := dict.Get("O").(String); ok {
		sh.OwnerKey = o.Value
	}
	if u, ok := dict.Get("U").(String); ok {
		sh.UserKey = u.Value
	}
	if em, ok := dict.Get("EncryptMetadata").(Boolean); ok {
		sh.EncryptMeta = bool(em)
	}

	if sh.Revision < 2 || sh.Revision > 4 {
		return nil, fmt.Errorf("%w: revision %d not supported", ErrEncrypted, sh.Revision)
	}
	if len(sh.OwnerKey) < 32 || len(sh.UserKey) < 32 {
		return nil, fmt.Errorf("%w: malformed O or U entry", ErrEncrypted)
	}

	switch sh.Version {
	case 1:
		sh.KeyLength = 5
	case 2:
	case 4:
		if _, ok := dict.GetInt("Length"); !ok {
			sh.KeyLength = 16
		}
		cf, _ := dict.GetDict("CF")
		var err error
		if sh.streams, err = cryptFilterMethod(cf, dict, "StmF"); err != nil {
			return nil, err
		}
		if sh.strings, err = cryptFilterMethod(cf, dict, "StrF"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: V %d not supported", ErrEncrypted, sh.Version)
	}

	return sh, nil
}

// cryptFilterMethod resolves the named crypt filter for V4 handlers
func cryptFilterMethod(cf, dict Dictionary, key string) (cryptMethod, error) {
	name, ok := dict.GetName(key)
	if !ok || name == "Identity" {
		return cryptIdentity, nil
	}
	filter, ok := cf.GetDict(string(name))
	if !ok {
		return 0, fmt.Errorf("%w: crypt filter %q missing", ErrEncrypted, name)
	}
	switch cfm, _ := filter.GetName("CFM"); cfm {
	case "V2":
		return cryptRC4, nil
	case "AESV2":
		return cryptAESV2, nil
	case "None", "":
		return cryptIdentity, nil
	default:
		return 0, fmt.Errorf("%w: crypt method %q not supported", ErrEncrypted, cfm)
	}
}

// AuthenticateUser checks a user password and derives the file key on success
func (sh *SecurityHandler) AuthenticateUser(password string) bool {
	key := sh.computeEncryptionKey(password)
	computed := sh.computeUserKey(key)

	n := 32
	if sh.Revision >= 3 {
		n = 16
	}
	if !bytes.Equal(computed[:n], sh.UserKey[:n]) {
		return false
	}
	sh.key = key
	return true
}

// computeEncryptionKey implements algorithm 2 of the standard security handler
func (sh *SecurityHandler) computeEncryptionKey(password string) []byte {
	h := md5.New()
	h.Write(padPassword(password))
	h.Write(sh.OwnerKey[:32])
	p := uint32(sh.Permissions)
	h.Write([]byte{byte(p), byte(p >> 8), byte(p >> 16), byte(p >> 24)})
	h.Write(sh.DocumentID)
	if sh.Revision >= 4 && !sh.EncryptMeta {
		h.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	}
	hash := h.Sum(nil)

	n := sh.KeyLength
	if sh.Revision == 2 {
		n = 5
	}
	if sh.Revision >= 3 {
		for i := 0; i < 50; i++ {
			sum := md5.Sum(hash[:n])
			hash = sum[:]
		}
	}
	return hash[:n]
}

// computeUserKey implements algorithms 4 and 5
func (sh *SecurityHandler) computeUserKey(key []byte) []byte {
	out := make([]byte, 32)
	if sh.Revision == 2 {
		c, _ := rc4.NewCipher(key)
		c.XORKeyStream(out, passwordPadding)
		return out
	}

	h := md5.New()
	h.Write(passwordPadding)
	h.Write(sh.DocumentID)
	sum := h.Sum(nil)

	tmp := make([]byte, len(key))
	for i := 0; i < 20; i++ {
		for j := range key {
			tmp[j] = key[j] ^ byte(i)
		}
		c, _ := rc4.NewCipher(tmp)
		c.XORKeyStream(sum, sum)
	}
	copy(out, sum)
	return out
}

// objectKey derives the per-object key (algorithm 1)
func (sh *SecurityHandler) objectKey(objNum, genNum int, method cryptMethod) []byte {
	h := md5.New()
	h.Write(sh.key)
	h.Write([]byte{byte(objNum), byte(objNum >> 8), byte(objNum >> 16)})
	h.Write([]byte{byte(genNum), byte(genNum >> 8)})
	if method == cryptAESV2 {
		h.Write([]byte("sAlT"))
	}
	n := len(sh.key) + 5
	if n > 16 {
		n = 16
	}
	return h.Sum(nil)[:n]
}

func (sh *SecurityHandler) decrypt(data []byte, objNum, genNum int, method cryptMethod) ([]byte, error) {
	switch method {
	case cryptIdentity:
		return data, nil
	case cryptRC4:
		c, err := rc4.NewCipher(sh.objectKey(objNum, genNum, method))
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(data))
		c.XORKeyStream(out, data)
		return out, nil
	case cryptAESV2:
		return decryptAESCBC(data, sh.objectKey(objNum, genNum, method))
	}
	return nil, errors.New("unknown crypt method")
}

// decryptObject decrypts every string and stream body within obj
func (sh *SecurityHandler) decryptObject(obj Object, objNum, genNum int) Object {
	switch v := obj.(type) {
	case String:
		if out, err := sh.decrypt(v.Value, objNum, genNum, sh.strings); err == nil {
			return String{Value: out, IsHex: v.IsHex}
		}
		return v
	case Array:
		out := make(Array, len(v))
		for i, item := range v {
			out[i] = sh.decryptObject(item, objNum, genNum)
		}
		return out
	case Dictionary:
		out := make(Dictionary, len(v))
		for k, item := range v {
			out[k] = sh.decryptObject(item, objNum, genNum)
		}
		return out
	case Stream:
		dict := sh.decryptObject(v.Dictionary, objNum, genNum).(Dictionary)
		if t, _ := v.Dictionary.GetName("Type"); t == "XRef" || (t == "Metadata" && !sh.EncryptMeta) {
			return Stream{Dictionary: dict, Data: v.Data}
		}
		data, err := sh.decrypt(v.Data, objNum, genNum, sh.streams)
		if err != nil {
			data = v.Data
		}
		return Stream{Dictionary: dict, Data: data}
	}
	return obj
}

// decryptAESCBC decrypts IV-prefixed AES-CBC data with PKCS#7 padding
func decryptAESCBC(data, key []byte) ([]byte, error) {
	if len(data) < 2*aes.BlockSize || len(data)%aes.BlockSize != 0 {
		if len(data) == aes.BlockSize {
			return nil, nil
		}
		return nil, errors.New("ciphertext not multiple of block size")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data)-aes.BlockSize)
	cipher.NewCBCDecrypter(block, data[:aes.BlockSize]).CryptBlocks(out, data[aes.BlockSize:])

	if pad := int(out[len(out)-1]); pad > 0 && pad <= aes.BlockSize && pad <= len(out) {
		out = out[:len(out)-pad]
	}
	return out, nil
}

// padPassword pads a password to 32 bytes
func padPassword(password string) []byte {
	pwd := []byte(password)
	if len(pwd) > 32 {
		pwd = pwd[:32]
	}
	result := make([]byte, 32)
	copy(result, pwd)
	copy(result[len(pwd):], passwordPadding)
	return result
}

// CanPrint returns true if printing is allowed
func (sh *SecurityHandler) CanPrint() bool {
	return sh.Permissions&0x04 != 0
}

// CanCopy returns true if copying is allowed
func (sh *SecurityHandler) CanCopy() bool {
	return sh.Permissions&0x10 != 0
}
